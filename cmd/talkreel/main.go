package main

import (
	"context"
	"fmt"
	"image/color"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ivlev/talkreel/internal/analyzer"
	"github.com/ivlev/talkreel/internal/config"
	"github.com/ivlev/talkreel/internal/export"
	"github.com/ivlev/talkreel/internal/logging"
	"github.com/ivlev/talkreel/internal/model"
	"github.com/ivlev/talkreel/internal/system"
)

// projectDir is searched for the newest project file when none is given.
const projectDir = "input"

type app struct {
	configPath string
	logLevel   string

	cfg *config.Config
	log *logrus.Logger
}

func main() {
	a := &app{}
	root := &cobra.Command{
		Use:           "talkreel",
		Short:         "Composite captions, effects and cutaways over a talking-head recording",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (YAML)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level override")

	root.AddCommand(a.exportCmd(), a.previewCmd(), a.frameCmd(), a.probeCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := root.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "[-] %v\n", err)
		os.Exit(1)
	}
}

func (a *app) init() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	a.cfg = cfg
	a.log = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	system.InitResourceLimits(a.log)
	return nil
}

// openProject loads the project at args[0], or the newest one in projectDir.
// A relative source path is resolved against the project file.
func (a *app) openProject(args []string) (*model.Project, string, error) {
	path := ""
	if len(args) > 0 {
		path = args[0]
	} else {
		latest, err := findProject()
		if err != nil {
			return nil, "", err
		}
		path = latest
		a.log.WithField("project", path).Info("using newest project")
	}

	p, err := model.ReadProject(path)
	if err != nil {
		return nil, "", err
	}
	dir := filepath.Dir(path)
	if p.Source != "" && !filepath.IsAbs(p.Source) {
		p.Source = filepath.Join(dir, p.Source)
	}
	return p, dir, nil
}

func findProject() (string, error) {
	latest, err := system.FindLatest(projectDir, system.ProjectExtensions)
	if err != nil {
		return "", fmt.Errorf("%w; pass a project file or put one in %s/", err, projectDir)
	}
	return latest, nil
}

// theme picks the configured palette, deriving it from a source frame in
// auto mode.
func (a *app) theme(ctx context.Context, src export.MediaSource, duration float64) model.ThemeConfig {
	switch a.cfg.Render.Theme {
	case "dark":
		return model.DarkTheme()
	case "light":
		return model.LightTheme()
	}

	log := logging.WithComponent(a.log, "analyzer")
	detector, err := analyzer.NewDetector(a.cfg.Render.Detector)
	if err != nil {
		log.WithError(err).Warn("unknown detector, using dark theme")
		return model.DarkTheme()
	}
	if src == nil {
		return model.DarkTheme()
	}

	sample := 1.0
	if duration > 0 && duration < 2 {
		sample = duration / 2
	}
	sctx, cancel := context.WithTimeout(ctx, a.cfg.Export.SeekTimeout)
	defer cancel()
	img, _, err := src.Seek(sctx, sample)
	if err != nil {
		log.WithError(err).Warn("could not sample source, using dark theme")
		return model.DarkTheme()
	}
	theme, err := analyzer.DeriveTheme(img, detector)
	if err != nil {
		log.WithError(err).Warn("theme analysis failed, using dark theme")
		return model.DarkTheme()
	}
	log.WithFields(logrus.Fields{"theme": theme.Name, "boxes": theme.CaptionBoxes}).Info("theme derived")
	return theme
}

// exportOptions maps the render and export config onto driver options.
func (a *app) exportOptions() (export.Options, error) {
	res, kbps, err := a.cfg.Output()
	if err != nil {
		return export.Options{}, err
	}
	return export.Options{
		Aspect:         a.cfg.Render.Aspect,
		Quality:        a.cfg.Render.Quality,
		Width:          res.Width,
		Height:         res.Height,
		FPS:            a.cfg.Render.FPS,
		BitrateKbps:    kbps,
		OutputDir:      a.cfg.Export.OutputDir,
		SeekTimeout:    a.cfg.Export.SeekTimeout,
		SampleRate:     a.cfg.Export.AudioSampleRate,
		PreloadWorkers: a.cfg.Export.PreloadWorkers,
		Background:     model.ColorOr(a.cfg.Render.Background, color.RGBA{A: 255}),
		ShowStats:      a.cfg.Export.ShowStats,
		BenchmarkLog:   a.cfg.Export.BenchmarkLog,
	}, nil
}

// capturers probes ffmpeg for usable encoders in preference order and ends
// with the MJPEG fallback.
func (a *app) capturers(ctx context.Context) []export.Capturer {
	log := logging.WithComponent(a.log, "export")
	pctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	var out []export.Capturer
	codecs, err := system.UsableEncoders(pctx, a.cfg.Export.FFmpegPath, a.cfg.Export.Codecs)
	if err != nil {
		log.WithError(err).Warn("ffmpeg unavailable, only MJPEG capture is possible")
	}
	for _, codec := range codecs {
		out = append(out, export.FFmpegCapturer(a.cfg.Export.FFmpegPath, codec))
	}
	if len(codecs) > 0 && codecs[0] != "libx264" {
		log.WithField("codec", codecs[0]).Info("hardware encoder available")
	}
	return append(out, export.MJPEGCapturer())
}
