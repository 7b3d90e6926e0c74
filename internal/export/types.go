// Package export renders a project frame by frame into a video file.
package export

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"math"
	"time"
)

// State is the export state machine position.
type State string

const (
	StateIdle      State = "idle"
	StatePreparing State = "preparing"
	StateRendering State = "rendering"
	StateMuxing    State = "muxing"
	StateDone      State = "done"
	StateFailed    State = "failed"
)

var (
	// ErrBusy is returned when an export is already running or the canvas
	// is leased to someone else.
	ErrBusy = errors.New("export already in progress")
	// ErrAborted is returned when an export is cancelled.
	ErrAborted = errors.New("export aborted")
	// ErrNoCaptureFormat means no capture backend could be started.
	ErrNoCaptureFormat = errors.New("no supported recording format")
)

// CaptureError is a fatal capture or codec failure.
type CaptureError struct {
	Msg string
	Err error
}

func (e *CaptureError) Error() string {
	if e.Err == nil {
		return e.Msg
	}
	return fmt.Sprintf("%s: %v", e.Msg, e.Err)
}

func (e *CaptureError) Unwrap() error { return e.Err }

// MediaSource is the decoded source recording.
type MediaSource interface {
	// Duration is the reported duration; it may be 0 or +Inf when the
	// container does not know it.
	Duration() float64
	HasAudio() bool
	// Seek returns the frame at instant and the position actually reached,
	// which is clamped to the end of the media. It must return promptly
	// once ctx is done. The image is valid until the next Seek.
	Seek(ctx context.Context, instant float64) (image.Image, float64, error)
	Close() error
}

// SourceOpener opens the source recording decoded to cover a width x height
// canvas at fps.
type SourceOpener func(ctx context.Context, path string, width, height, fps int) (MediaSource, error)

// CaptureSpec describes the stream handed to a recorder.
type CaptureSpec struct {
	Path        string // temporary output file
	Width       int
	Height      int
	FPS         int
	BitrateKbps int
	Duration    float64
	Audio       bool
	SampleRate  int
}

// Recorder consumes painted frames and produces a container file.
type Recorder interface {
	WriteFrame(img *image.RGBA) error
	// AudioSink receives interleaved s16le stereo samples; nil when the
	// recorder has no audio track.
	AudioSink() io.WriteCloser
	// Finish stops capture and waits for the container to be complete.
	Finish() error
	// Abort stops capture and removes the output file.
	Abort()
}

// Capturer is one capture backend in the fallback order.
type Capturer struct {
	Name  string
	Ext   string
	Audio bool
	Open  func(ctx context.Context, spec CaptureSpec) (Recorder, error)
}

// AudioTap plays the source audio at 1x into a recorder.
type AudioTap interface {
	Start(ctx context.Context, sink io.WriteCloser) error
	Stop() error
}

// Clock abstracts wall time for pacing.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// FrameCount is the number of frames rendered for duration at fps:
// frames 0 through ceil(duration*fps)-1.
func FrameCount(duration float64, fps int) int {
	if duration <= 0 || fps <= 0 {
		return 0
	}
	// guard against 2.0000000001*30 style rounding noise
	return int(math.Ceil(duration*float64(fps) - 1e-9))
}

// OutputName builds "<base>_<aspect>_<quality>_<timestamp>.<ext>".
func OutputName(base, aspect, quality string, at time.Time, ext string) string {
	return fmt.Sprintf("%s_%s_%s_%s.%s", base, aspect, quality, at.Format("20060102-150405"), ext)
}
