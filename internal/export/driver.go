package export

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/image/draw"

	"github.com/ivlev/talkreel/internal/compositor"
	"github.com/ivlev/talkreel/internal/model"
	"github.com/ivlev/talkreel/internal/source"
	"github.com/ivlev/talkreel/internal/system"
)

// canvasOwner is the lease name held for the whole export.
const canvasOwner = "export"

// seekToEnd is far past any real recording; seeking there lands on the end.
const seekToEnd = 1e9

// Options are the per-export settings.
type Options struct {
	Aspect         string
	Quality        string
	Width          int
	Height         int
	FPS            int
	BitrateKbps    int
	OutputDir      string
	SeekTimeout    time.Duration
	SampleRate     int
	PreloadWorkers int
	Background     color.RGBA
	ShowStats      bool
	BenchmarkLog   string
}

// Status is a snapshot of the driver.
type Status struct {
	State  State   `json:"state"`
	Frame  int     `json:"frame"`
	Total  int     `json:"total"`
	Output string  `json:"output,omitempty"`
	Error  string  `json:"error,omitempty"`
	Report *Report `json:"report,omitempty"`
}

// Report summarises one finished export.
type Report struct {
	Frames       int           `json:"frames"`
	Duration     float64       `json:"duration"`
	Wall         time.Duration `json:"wall"`
	RenderFPS    float64       `json:"render_fps"`
	LateFrames   int           `json:"late_frames"`
	SeekTimeouts int           `json:"seek_timeouts"`
	Codec        string        `json:"codec"`
	Output       string        `json:"output"`
	Usage        system.Usage  `json:"usage"`
}

// Driver runs exports one at a time on a shared canvas.
type Driver struct {
	Log        logrus.FieldLogger
	Canvas     *compositor.Canvas
	Painter    *compositor.Painter
	Fetcher    source.Fetcher
	OpenSource SourceOpener
	Capturers  []Capturer
	Audio      func(path string, sampleRate int) AudioTap
	Clock      Clock
	// OnState, when set, observes every state change.
	OnState func(Status)

	mu     sync.Mutex
	status Status
	cancel context.CancelFunc
}

// NewDriver returns an idle driver with a real clock.
func NewDriver(log logrus.FieldLogger, canvas *compositor.Canvas, painter *compositor.Painter) *Driver {
	return &Driver{
		Log:     log,
		Canvas:  canvas,
		Painter: painter,
		Clock:   realClock{},
		status:  Status{State: StateIdle},
	}
}

// Status returns the current state snapshot.
func (d *Driver) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status
}

// Abort cancels a running export. It is a no-op when idle.
func (d *Driver) Abort() {
	d.mu.Lock()
	cancel := d.cancel
	d.mu.Unlock()
	if cancel != nil {
		d.Log.Info("export abort requested")
		cancel()
	}
}

func (d *Driver) setState(s State, mutate func(*Status)) {
	d.mu.Lock()
	d.status.State = s
	if mutate != nil {
		mutate(&d.status)
	}
	snap := d.status
	d.mu.Unlock()

	d.Log.WithField("state", s).Debug("export state")
	if d.OnState != nil {
		d.OnState(snap)
	}
}

func (d *Driver) setFrame(frame int) {
	d.mu.Lock()
	d.status.Frame = frame
	d.mu.Unlock()
}

// Run exports p with theme. It blocks until the file is finalized, the
// export fails, or it is aborted; in every case the driver ends idle.
func (d *Driver) Run(ctx context.Context, p *model.Project, theme model.ThemeConfig, opts Options) (*Report, error) {
	d.mu.Lock()
	if d.status.State != StateIdle {
		d.mu.Unlock()
		return nil, ErrBusy
	}
	if err := d.Canvas.Acquire(canvasOwner); err != nil {
		d.mu.Unlock()
		return nil, ErrBusy
	}
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.status = Status{State: StatePreparing}
	d.mu.Unlock()

	if d.OnState != nil {
		d.OnState(d.Status())
	}

	report, err := d.run(ctx, p, theme, opts)

	cancel()
	d.Canvas.Release(canvasOwner)
	d.mu.Lock()
	d.cancel = nil
	d.mu.Unlock()

	switch {
	case err == nil:
		d.setState(StateDone, func(s *Status) { s.Report = report; s.Output = report.Output })
		d.Log.WithField("output", report.Output).Info("export finished")
	case errors.Is(err, ErrAborted):
		d.Log.Info("export aborted")
	default:
		d.setState(StateFailed, func(s *Status) { s.Error = err.Error() })
		d.Log.WithError(err).Error("export failed")
	}
	d.setState(StateIdle, nil)
	return report, err
}

func (d *Driver) run(ctx context.Context, p *model.Project, theme model.ThemeConfig, opts Options) (*Report, error) {
	if opts.FPS <= 0 || opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("export: invalid output %dx%d@%d", opts.Width, opts.Height, opts.FPS)
	}
	log := d.Log.WithField("source", p.Source)
	clock := d.Clock
	if clock == nil {
		clock = realClock{}
	}

	// preparing
	src, err := d.OpenSource(ctx, p.Source, opts.Width, opts.Height, opts.FPS)
	if err != nil {
		return nil, d.abortOr(ctx, fmt.Errorf("open source: %w", err))
	}
	defer src.Close()

	duration := p.Duration
	if duration <= 0 {
		if duration, err = ResolveDuration(ctx, src); err != nil {
			return nil, d.abortOr(ctx, err)
		}
	}
	total := FrameCount(duration, opts.FPS)
	if total == 0 {
		return nil, fmt.Errorf("export: source %s has no frames", p.Source)
	}
	d.mu.Lock()
	d.status.Total = total
	d.mu.Unlock()

	var assets compositor.AssetMap
	if d.Fetcher != nil && len(p.Cutaways) > 0 {
		refs := make([]string, 0, len(p.Cutaways))
		for _, c := range p.Cutaways {
			refs = append(refs, c.Source)
		}
		loaded, err := source.Preload(ctx, d.Fetcher, refs, opts.PreloadWorkers, log)
		if err != nil {
			return nil, d.abortOr(ctx, err)
		}
		assets = loaded
	}

	audio := src.HasAudio() && d.Audio != nil
	rec, capturer, tmpPath, err := d.openCapture(ctx, p, opts, duration, audio)
	if err != nil {
		return nil, d.abortOr(ctx, err)
	}
	if !capturer.Audio {
		audio = false
	}
	log = log.WithField("codec", capturer.Name)
	log.WithFields(logrus.Fields{
		"frames":   total,
		"duration": duration,
		"size":     fmt.Sprintf("%dx%d", opts.Width, opts.Height),
		"fps":      opts.FPS,
	}).Info("export started")

	comp := compositor.New(theme, opts.Width, opts.Height)
	comp.Background = opts.Background
	canvas := system.GetImage(image.Rect(0, 0, opts.Width, opts.Height))
	defer system.PutImage(canvas)

	// rendering
	d.setState(StateRendering, nil)
	var tap AudioTap
	stopTap := func() {
		if tap != nil {
			if err := tap.Stop(); err != nil {
				log.WithError(err).Debug("audio tap stop")
			}
			tap = nil
		}
	}
	fail := func(err error) (*Report, error) {
		stopTap()
		rec.Abort()
		os.Remove(tmpPath)
		return nil, d.abortOr(ctx, err)
	}

	report := &Report{Frames: total, Duration: duration, Codec: capturer.Name}
	interval := float64(time.Second) / float64(opts.FPS)
	// last owns a copy: a source may reuse its buffers once the next seek starts
	var last *image.RGBA
	defer func() {
		if last != nil {
			system.PutImage(last)
		}
	}()
	renderStart := clock.Now()

	for frame := 0; frame < total; frame++ {
		if ctx.Err() != nil {
			return fail(ErrAborted)
		}
		instant := float64(frame) / float64(opts.FPS)

		var img image.Image
		seeked, err := d.seek(ctx, src, instant, opts.SeekTimeout)
		switch {
		case err == nil:
			last = keepFrame(last, seeked)
			if last != nil {
				img = last
			}
		case ctx.Err() != nil:
			return fail(ErrAborted)
		default:
			report.SeekTimeouts++
			log.WithError(err).WithField("instant", instant).Warn("seek failed, reusing last frame")
			if last != nil {
				img = last
			}
		}

		if frame == 0 && audio {
			tap = d.Audio(p.Source, opts.SampleRate)
			if err := tap.Start(ctx, rec.AudioSink()); err != nil {
				log.WithError(err).Warn("audio unavailable, exporting silent")
				if sink := rec.AudioSink(); sink != nil {
					sink.Close()
				}
				tap = nil
			}
		}

		f := comp.Describe(p, instant, duration)
		if err := d.Painter.Paint(canvas, f, img, assets); err != nil {
			return fail(&CaptureError{Msg: "paint frame", Err: err})
		}
		if err := rec.WriteFrame(canvas); err != nil {
			return fail(&CaptureError{Msg: fmt.Sprintf("write frame %d", frame), Err: err})
		}
		d.setFrame(frame + 1)

		target := renderStart.Add(time.Duration(float64(frame+1) * interval))
		wait := target.Sub(clock.Now())
		if wait > 0 {
			if err := clock.Sleep(ctx, wait); err != nil {
				return fail(ErrAborted)
			}
		} else if -wait > time.Duration(interval) {
			report.LateFrames++
		}
	}

	// muxing
	d.setState(StateMuxing, nil)
	stopTap()
	if err := rec.Finish(); err != nil {
		os.Remove(tmpPath)
		return nil, d.abortOr(ctx, &CaptureError{Msg: "finalize recording", Err: err})
	}
	if ctx.Err() != nil {
		os.Remove(tmpPath)
		return nil, ErrAborted
	}

	final := filepath.Join(opts.OutputDir,
		OutputName(baseName(p.Source), opts.Aspect, opts.Quality, clock.Now(), capturer.Ext))
	if err := os.Rename(tmpPath, final); err != nil {
		os.Remove(tmpPath)
		return nil, &CaptureError{Msg: "finalize recording", Err: err}
	}

	report.Output = final
	report.Wall = clock.Now().Sub(renderStart)
	if report.Wall > 0 {
		report.RenderFPS = float64(total) / report.Wall.Seconds()
	}
	if u, err := system.SampleUsage(); err == nil {
		report.Usage = u
	}
	d.printReport(report, opts)
	return report, nil
}

// abortOr maps any error raised after cancellation to ErrAborted.
func (d *Driver) abortOr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ErrAborted
	}
	return err
}

// seek reads the source frame at instant, bounded by timeout.
func (d *Driver) seek(ctx context.Context, src MediaSource, instant float64, timeout time.Duration) (image.Image, error) {
	if timeout <= 0 {
		img, _, err := src.Seek(ctx, instant)
		return img, err
	}
	sctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	img, _, err := src.Seek(sctx, instant)
	return img, err
}

// keepFrame copies src into dst, replacing dst when the size changed.
func keepFrame(dst *image.RGBA, src image.Image) *image.RGBA {
	if src == nil {
		return dst
	}
	b := src.Bounds()
	if dst == nil || dst.Bounds() != b {
		if dst != nil {
			system.PutImage(dst)
		}
		dst = system.GetImage(b)
	}
	draw.Draw(dst, b, src, b.Min, draw.Src)
	return dst
}

// openCapture walks the capturers in order and returns the first that starts.
func (d *Driver) openCapture(ctx context.Context, p *model.Project, opts Options, duration float64, audio bool) (Recorder, Capturer, string, error) {
	if len(d.Capturers) == 0 {
		return nil, Capturer{}, "", &CaptureError{Msg: "open recorder", Err: ErrNoCaptureFormat}
	}
	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil && opts.OutputDir != "" {
		return nil, Capturer{}, "", &CaptureError{Msg: "output directory", Err: err}
	}

	var errs []error
	for _, c := range d.Capturers {
		tmp := filepath.Join(opts.OutputDir, fmt.Sprintf(".%s.partial.%s", baseName(p.Source), c.Ext))
		spec := CaptureSpec{
			Path:        tmp,
			Width:       opts.Width,
			Height:      opts.Height,
			FPS:         opts.FPS,
			BitrateKbps: opts.BitrateKbps,
			Duration:    duration,
			Audio:       audio && c.Audio,
			SampleRate:  opts.SampleRate,
		}
		rec, err := c.Open(ctx, spec)
		if err == nil {
			return rec, c, tmp, nil
		}
		d.Log.WithError(err).WithField("codec", c.Name).Warn("capture backend unavailable")
		errs = append(errs, fmt.Errorf("%s: %w", c.Name, err))
		os.Remove(tmp)
	}
	return nil, Capturer{}, "", &CaptureError{Msg: errors.Join(errs...).Error(), Err: ErrNoCaptureFormat}
}

func (d *Driver) printReport(r *Report, opts Options) {
	d.Log.WithFields(logrus.Fields{
		"frames":        r.Frames,
		"wall":          r.Wall.Round(time.Millisecond).String(),
		"render_fps":    fmt.Sprintf("%.2f", r.RenderFPS),
		"late_frames":   r.LateFrames,
		"seek_timeouts": r.SeekTimeouts,
		"rss_mb":        r.Usage.RSSBytes >> 20,
		"cpu":           fmt.Sprintf("%.1f%%", r.Usage.CPUPercent),
	}).Info("performance report")

	if !opts.ShowStats || opts.BenchmarkLog == "" {
		return
	}
	line := fmt.Sprintf("[%s] Output: %s | Codec: %s | Frames: %d | Duration: %.2fs | Wall: %.2fs | FPS: %.2f | Late: %d | RSS: %dMB",
		time.Now().Format("2006-01-02 15:04:05"),
		filepath.Base(r.Output), r.Codec, r.Frames, r.Duration, r.Wall.Seconds(), r.RenderFPS, r.LateFrames, r.Usage.RSSBytes>>20)
	if err := system.AppendBenchmark(opts.BenchmarkLog, line); err != nil {
		d.Log.WithError(err).Warn("could not write benchmark log")
	}
}

// ResolveDuration returns the media duration, seeking to the end and back
// when the container does not report a finite one.
func ResolveDuration(ctx context.Context, src MediaSource) (float64, error) {
	if d := src.Duration(); d > 0 && !math.IsInf(d, 0) && !math.IsNaN(d) {
		return d, nil
	}
	_, end, err := src.Seek(ctx, seekToEnd)
	if err != nil {
		return 0, fmt.Errorf("resolve duration: %w", err)
	}
	if _, _, err := src.Seek(ctx, 0); err != nil {
		return 0, fmt.Errorf("resolve duration: rewind: %w", err)
	}
	if end <= 0 || math.IsInf(end, 0) || math.IsNaN(end) {
		return 0, errors.New("resolve duration: source reports no end")
	}
	return end, nil
}

func baseName(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "" || base == "." || base == string(filepath.Separator) {
		return "talkreel"
	}
	return base
}
