package main

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ivlev/talkreel/internal/compositor"
	"github.com/ivlev/talkreel/internal/export"
	"github.com/ivlev/talkreel/internal/logging"
	"github.com/ivlev/talkreel/internal/source"
	"github.com/ivlev/talkreel/internal/system"
)

func (a *app) frameCmd() *cobra.Command {
	var at float64
	var out string
	cmd := &cobra.Command{
		Use:   "frame [project.yaml]",
		Short: "Render a single composited frame to PNG",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if at < 0 {
				return fmt.Errorf("--at must be non-negative, got %v", at)
			}
			return a.runFrame(cmd.Context(), args, at, out)
		},
	}
	cmd.Flags().Float64Var(&at, "at", 0, "instant in seconds")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output PNG (default <project>_<instant>.png)")
	return cmd
}

func (a *app) runFrame(ctx context.Context, args []string, at float64, out string) error {
	p, dir, err := a.openProject(args)
	if err != nil {
		return err
	}
	opts, err := a.exportOptions()
	if err != nil {
		return err
	}
	log := logging.WithComponent(a.log, "frame")

	var src image.Image
	var ms export.MediaSource
	duration := p.Duration
	s, err := export.OpenFFmpegSource(ctx, a.cfg.Export.FFmpegPath, a.cfg.Export.FFprobePath, p.Source, opts.Width, opts.Height, opts.FPS)
	if err != nil {
		log.WithError(err).Warn("source unavailable, rendering overlays only")
	} else {
		defer s.Close()
		ms = s
		if duration <= 0 {
			duration = s.Duration()
		}
	}
	theme := a.theme(ctx, ms, duration)
	if ms != nil {
		sctx, cancel := context.WithTimeout(ctx, opts.SeekTimeout)
		img, _, err := ms.Seek(sctx, at)
		cancel()
		if err != nil {
			log.WithError(err).Warn("seek failed, rendering overlays only")
		} else {
			src = img
		}
	}

	assets, err := source.Preload(ctx, source.NewLoader(dir), cutawayRefs(p), opts.PreloadWorkers, log)
	if err != nil {
		return err
	}

	painter, err := compositor.NewPainter()
	if err != nil {
		return err
	}
	f := compositor.New(theme, opts.Width, opts.Height).Describe(p, at, duration)
	img, err := painter.Render(f, src, compositor.AssetMap(assets))
	if err != nil {
		return err
	}
	defer system.PutImage(img)

	if out == "" {
		base := strings.TrimSuffix(filepath.Base(p.Source), filepath.Ext(p.Source))
		if base == "" || base == "." {
			base = "talkreel"
		}
		out = fmt.Sprintf("%s_%.2f.png", base, at)
	}
	fh, err := os.Create(out)
	if err != nil {
		return err
	}
	if err := png.Encode(fh, img); err != nil {
		fh.Close()
		return err
	}
	if err := fh.Close(); err != nil {
		return err
	}

	fmt.Printf("[+] Frame @ %.2fs -> %s\n", at, out)
	for _, l := range f.Layers() {
		fmt.Printf("    %s\n", l)
	}
	return nil
}
