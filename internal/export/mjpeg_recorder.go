package export

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"os"

	"github.com/icza/mjpeg"
)

// mjpegQuality is the JPEG quality of fallback frames.
const mjpegQuality = 85

// MJPEGRecorder writes a silent Motion-JPEG AVI. It needs no external
// encoder and is the last capture fallback.
type MJPEGRecorder struct {
	aw   mjpeg.AviWriter
	path string
	buf  bytes.Buffer
}

// MJPEGCapturer is the pure-Go fallback backend.
func MJPEGCapturer() Capturer {
	return Capturer{
		Name: "mjpeg",
		Ext:  "avi",
		Open: func(ctx context.Context, spec CaptureSpec) (Recorder, error) {
			return StartMJPEGRecorder(spec)
		},
	}
}

// StartMJPEGRecorder creates spec.Path as an AVI container.
func StartMJPEGRecorder(spec CaptureSpec) (*MJPEGRecorder, error) {
	aw, err := mjpeg.New(spec.Path, int32(spec.Width), int32(spec.Height), int32(spec.FPS))
	if err != nil {
		return nil, fmt.Errorf("mjpeg: %w", err)
	}
	return &MJPEGRecorder{aw: aw, path: spec.Path}, nil
}

func (r *MJPEGRecorder) WriteFrame(img *image.RGBA) error {
	r.buf.Reset()
	if err := jpeg.Encode(&r.buf, img, &jpeg.Options{Quality: mjpegQuality}); err != nil {
		return fmt.Errorf("jpeg encode: %w", err)
	}
	return r.aw.AddFrame(r.buf.Bytes())
}

func (r *MJPEGRecorder) AudioSink() io.WriteCloser { return nil }

func (r *MJPEGRecorder) Finish() error {
	return r.aw.Close()
}

func (r *MJPEGRecorder) Abort() {
	r.aw.Close()
	os.Remove(r.path)
}
