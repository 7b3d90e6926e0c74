package export

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// FFmpegRecorder pipes raw RGBA frames into ffmpeg. Video frames are
// timestamped on arrival, so the output follows the paced wall clock; the
// optional audio track arrives as s16le stereo on fd 3.
type FFmpegRecorder struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	audioW *os.File
	path   string
	stderr bytes.Buffer
	width  int
	height int
}

// FFmpegCapturer returns the capture backend for one ffmpeg codec.
func FFmpegCapturer(ffmpeg, codec string) Capturer {
	return Capturer{
		Name:  codec,
		Ext:   "mp4",
		Audio: true,
		Open: func(ctx context.Context, spec CaptureSpec) (Recorder, error) {
			return StartFFmpegRecorder(ctx, ffmpeg, codec, spec)
		},
	}
}

// StartFFmpegRecorder launches ffmpeg writing spec.Path with codec.
func StartFFmpegRecorder(ctx context.Context, ffmpeg, codec string, spec CaptureSpec) (*FFmpegRecorder, error) {
	r := &FFmpegRecorder{path: spec.Path, width: spec.Width, height: spec.Height}
	cmd := exec.CommandContext(ctx, ffmpeg, recorderArgs(codec, spec)...)
	cmd.Stderr = &r.stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe error: %w", err)
	}

	var audioR *os.File
	if spec.Audio {
		audioR, r.audioW, err = os.Pipe()
		if err != nil {
			stdin.Close()
			return nil, fmt.Errorf("audio pipe error: %w", err)
		}
		cmd.ExtraFiles = []*os.File{audioR}
	}

	if err := cmd.Start(); err != nil {
		stdin.Close()
		if audioR != nil {
			audioR.Close()
			r.audioW.Close()
		}
		return nil, fmt.Errorf("ffmpeg start error: %w", err)
	}
	if audioR != nil {
		// the child holds its own copy
		audioR.Close()
	}
	r.cmd = cmd
	r.stdin = stdin
	return r, nil
}

func recorderArgs(codec string, spec CaptureSpec) []string {
	args := []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-f", "rawvideo",
		"-pixel_format", "rgba",
		"-video_size", fmt.Sprintf("%dx%d", spec.Width, spec.Height),
		"-use_wallclock_as_timestamps", "1",
		"-thread_queue_size", "512",
		"-i", "pipe:0",
	}
	if spec.Audio {
		rate := spec.SampleRate
		if rate <= 0 {
			rate = 48000
		}
		args = append(args,
			"-f", "s16le", "-ar", strconv.Itoa(rate), "-ac", "2",
			"-thread_queue_size", "1024",
			"-i", "pipe:3",
			"-map", "0:v", "-map", "1:a",
			"-c:a", "aac", "-b:a", "160k",
		)
	}
	args = append(args,
		"-vf", fmt.Sprintf("fps=%d", spec.FPS),
		"-pix_fmt", "yuv420p",
		"-c:v", codec,
	)
	args = append(args, qualityArgs(codec, spec.BitrateKbps)...)
	if spec.Duration > 0 {
		args = append(args, "-t", strconv.FormatFloat(spec.Duration, 'f', 3, 64))
	}
	args = append(args, "-movflags", "+faststart", "-f", "mp4", spec.Path)
	return args
}

// qualityArgs maps a target bitrate to each encoder's rate control.
func qualityArgs(codec string, kbps int) []string {
	if kbps <= 0 {
		kbps = 8000
	}
	rate := fmt.Sprintf("%dk", kbps)
	switch codec {
	case "h264_videotoolbox":
		return []string{"-b:v", rate, "-realtime", "1"}
	case "h264_nvenc":
		return []string{"-preset", "p4", "-rc", "vbr", "-cq", "23", "-b:v", rate}
	case "libx264":
		return []string{"-preset", "veryfast", "-crf", "20", "-maxrate", rate, "-bufsize", fmt.Sprintf("%dk", 2*kbps)}
	default:
		return []string{"-b:v", rate}
	}
}

func (r *FFmpegRecorder) WriteFrame(img *image.RGBA) error {
	b := img.Bounds()
	if b.Dx() != r.width || b.Dy() != r.height || img.Stride != b.Dx()*4 {
		return fmt.Errorf("frame %v does not match %dx%d capture", b, r.width, r.height)
	}
	if _, err := r.stdin.Write(img.Pix); err != nil {
		return fmt.Errorf("write raw error: %w: %s", err, r.log())
	}
	return nil
}

func (r *FFmpegRecorder) AudioSink() io.WriteCloser {
	if r.audioW == nil {
		return nil
	}
	return r.audioW
}

func (r *FFmpegRecorder) Finish() error {
	r.stdin.Close()
	if r.audioW != nil {
		r.audioW.Close()
	}
	if err := r.cmd.Wait(); err != nil {
		return fmt.Errorf("ffmpeg wait error: %w: %s", err, r.log())
	}
	return nil
}

func (r *FFmpegRecorder) Abort() {
	if r.cmd.Process != nil {
		r.cmd.Process.Kill()
	}
	r.stdin.Close()
	if r.audioW != nil {
		r.audioW.Close()
	}
	r.cmd.Wait()
	os.Remove(r.path)
}

func (r *FFmpegRecorder) log() string {
	return strings.TrimSpace(r.stderr.String())
}
