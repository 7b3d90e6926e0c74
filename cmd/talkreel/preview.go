package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ivlev/talkreel/internal/compositor"
	"github.com/ivlev/talkreel/internal/export"
	"github.com/ivlev/talkreel/internal/logging"
	"github.com/ivlev/talkreel/internal/model"
	"github.com/ivlev/talkreel/internal/preview"
	"github.com/ivlev/talkreel/internal/source"
)

// previewScale shrinks the export resolution for the live preview.
const previewScale = 0.5

func (a *app) previewCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "preview [project.yaml]",
		Short: "Serve a live preview with playback controls and export",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				a.cfg.Preview.Addr = addr
			}
			return a.runPreview(cmd.Context(), args)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address")
	return cmd
}

func (a *app) runPreview(ctx context.Context, args []string) error {
	path, err := a.projectPath(args)
	if err != nil {
		return err
	}
	p, dir, err := a.openProject([]string{path})
	if err != nil {
		return err
	}
	opts, err := a.exportOptions()
	if err != nil {
		return err
	}
	log := logging.WithComponent(a.log, "preview")

	painter, err := compositor.NewPainter()
	if err != nil {
		return err
	}
	canvas := &compositor.Canvas{}
	ffmpeg, ffprobe := a.cfg.Export.FFmpegPath, a.cfg.Export.FFprobePath

	w, h := even(float64(opts.Width)*previewScale), even(float64(opts.Height)*previewScale)
	var src export.MediaSource
	duration := p.Duration
	if s, err := export.OpenFFmpegSource(ctx, ffmpeg, ffprobe, p.Source, w, h, opts.FPS); err != nil {
		log.WithError(err).Warn("source unavailable, previewing overlays only")
	} else {
		defer s.Close()
		src = s
		if duration <= 0 {
			duration = s.Duration()
		}
	}
	if duration <= 0 {
		return fmt.Errorf("preview: duration of %s is unknown", p.Source)
	}
	theme := a.theme(ctx, src, duration)

	fetcher := source.NewLoader(dir)
	assets, err := source.Preload(ctx, fetcher, cutawayRefs(p), opts.PreloadWorkers, log)
	if err != nil {
		return err
	}

	exp := export.NewDriver(logging.WithComponent(a.log, "export"), canvas, painter)
	exp.OpenSource = export.Opener(ffmpeg, ffprobe)
	exp.Fetcher = fetcher
	exp.Capturers = a.capturers(ctx)
	exp.Audio = export.AudioTaps(ffmpeg)

	hub := preview.NewHub(log)
	defer hub.Close()
	exp.OnState = preview.ExportPublisher(hub)

	reg := preview.NewRegistry()
	driver := preview.NewDriver(preview.NewSimPlayer(duration), canvas, preview.DriverOptions{
		TickRate:           a.cfg.Preview.TickRate,
		Epsilon:            a.cfg.Preview.Epsilon,
		ReconcileThreshold: a.cfg.Preview.ReconcileThreshold,
		Debounce:           a.cfg.Preview.Debounce,
	})
	reg.Add(driver)

	store := preview.NewStore(p)
	cfg := preview.ServerConfig{
		Logger:        log,
		Registry:      reg,
		Store:         store,
		Compositor:    compositor.New(theme, w, h),
		Painter:       painter,
		Canvas:        canvas,
		Hub:           hub,
		Source:        src,
		Assets:        compositor.AssetMap(assets),
		Duration:      duration,
		Export:        exp,
		ExportOptions: opts,
		Theme:         theme,
		StartTime:     time.Now(),
	}
	driver.OnPosition(preview.FramePublisher(cfg))

	g, gctx := errgroup.WithContext(ctx)

	if a.cfg.Preview.Watch {
		watcher, err := preview.NewWatcher(path, store, logging.WithComponent(a.log, "watcher"))
		if err != nil {
			return err
		}
		defer watcher.Stop()
		watcher.OnReload(func(*model.Project) {
			driver.SetPosition(driver.Position(), time.Now())
		})
		g.Go(func() error { return watcher.Start(gctx) })
	}

	g.Go(func() error { return preview.Run(gctx, reg) })

	server := &http.Server{
		Addr:              a.cfg.Preview.Addr,
		Handler:           preview.NewRouter(cfg),
		ReadHeaderTimeout: 10 * time.Second,
	}
	g.Go(func() error {
		log.WithField("addr", server.Addr).Info("preview server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		exp.Abort()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	log.Info("preview stopped")
	return err
}

// projectPath is args[0] or the newest project in projectDir; the watcher
// needs the concrete path.
func (a *app) projectPath(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	return findProject()
}

func cutawayRefs(p *model.Project) []string {
	refs := make([]string, 0, len(p.Cutaways))
	for _, c := range p.Cutaways {
		refs = append(refs, c.Source)
	}
	return refs
}

func even(v float64) int {
	n := int(v)
	if n%2 != 0 {
		n++
	}
	if n < 2 {
		n = 2
	}
	return n
}
