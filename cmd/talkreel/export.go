package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ivlev/talkreel/internal/compositor"
	"github.com/ivlev/talkreel/internal/export"
	"github.com/ivlev/talkreel/internal/logging"
	"github.com/ivlev/talkreel/internal/source"
)

func (a *app) exportCmd() *cobra.Command {
	var aspect, quality, outputDir string
	var fps int

	cmd := &cobra.Command{
		Use:   "export [project.yaml]",
		Short: "Render the project to a video file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if aspect != "" {
				a.cfg.Render.Aspect = aspect
			}
			if quality != "" {
				a.cfg.Render.Quality = quality
			}
			if fps > 0 {
				a.cfg.Render.FPS = fps
			}
			if outputDir != "" {
				a.cfg.Export.OutputDir = outputDir
			}
			if err := a.cfg.Validate(); err != nil {
				return err
			}
			return a.runExport(cmd, args)
		},
	}
	cmd.Flags().StringVar(&aspect, "aspect", "", "vertical, square or landscape")
	cmd.Flags().StringVar(&quality, "quality", "", "standard or high")
	cmd.Flags().IntVar(&fps, "fps", 0, "frames per second")
	cmd.Flags().StringVar(&outputDir, "output-dir", "", "directory for the finished file")
	return cmd
}

func (a *app) runExport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	p, dir, err := a.openProject(args)
	if err != nil {
		return err
	}
	opts, err := a.exportOptions()
	if err != nil {
		return err
	}

	painter, err := compositor.NewPainter()
	if err != nil {
		return err
	}

	ffmpeg, ffprobe := a.cfg.Export.FFmpegPath, a.cfg.Export.FFprobePath
	d := export.NewDriver(logging.WithComponent(a.log, "export"), &compositor.Canvas{}, painter)
	d.OpenSource = export.Opener(ffmpeg, ffprobe)
	d.Fetcher = source.NewLoader(dir)
	d.Capturers = a.capturers(ctx)
	d.Audio = export.AudioTaps(ffmpeg)

	// theme analysis samples its own decoder
	probe, err := export.OpenFFmpegSource(ctx, ffmpeg, ffprobe, p.Source, opts.Width, opts.Height, opts.FPS)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	theme := a.theme(ctx, probe, probe.Duration())
	probe.Close()

	fmt.Printf("[*] Source: %s | Captions: %d | Effects: %d | Cutaways: %d\n",
		p.Source, len(p.Captions), len(p.Effects), len(p.Cutaways))
	fmt.Printf("[*] Output: %dx%d @ %d FPS (%s, %s)\n", opts.Width, opts.Height, opts.FPS, opts.Aspect, opts.Quality)

	report, err := d.Run(ctx, p, theme, opts)
	if errors.Is(err, export.ErrAborted) {
		fmt.Println("[!] Export aborted, nothing written")
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Printf("[+++] Done! Result: %s\n", report.Output)
	return nil
}
