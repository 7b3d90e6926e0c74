package export

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/ivlev/talkreel/internal/system"
)

// restartGap is how far ahead a seek may be before the decoder restarts
// instead of reading forward.
const restartGap = 2.0

// FFmpegSource decodes a recording to raw RGBA through an ffmpeg pipe.
// Forward seeks read frames sequentially; backward or distant seeks restart
// the decoder at the target.
type FFmpegSource struct {
	ffmpeg  string
	ffprobe string
	path    string
	fps     int
	info    system.VideoInfo
	w, h    int // decoded size, covering the canvas

	mu    sync.Mutex
	dec   *decoder
	front *image.RGBA
	back  *image.RGBA
	pos   float64
	have  bool
	end   float64
}

type decoder struct {
	cmd   *exec.Cmd
	out   io.ReadCloser
	start float64
	n     int // frames read
}

func (d *decoder) next(fps int) float64 { return d.start + float64(d.n)/float64(fps) }

func (d *decoder) kill() {
	if d.cmd.Process != nil {
		d.cmd.Process.Kill()
	}
	d.out.Close()
	d.cmd.Wait()
}

// OpenFFmpegSource probes path and prepares a decoder scaled to cover a
// width x height canvas.
func OpenFFmpegSource(ctx context.Context, ffmpeg, ffprobe, path string, width, height, fps int) (*FFmpegSource, error) {
	info, err := system.ProbeVideo(ctx, ffprobe, path)
	if err != nil {
		return nil, err
	}
	w, h := coverSize(info.Width, info.Height, width, height)
	return &FFmpegSource{
		ffmpeg:  ffmpeg,
		ffprobe: ffprobe,
		path:    path,
		fps:     fps,
		info:    info,
		w:       w,
		h:       h,
		front:   image.NewRGBA(image.Rect(0, 0, w, h)),
		back:    image.NewRGBA(image.Rect(0, 0, w, h)),
	}, nil
}

// Opener adapts OpenFFmpegSource to a SourceOpener.
func Opener(ffmpeg, ffprobe string) SourceOpener {
	return func(ctx context.Context, path string, width, height, fps int) (MediaSource, error) {
		return OpenFFmpegSource(ctx, ffmpeg, ffprobe, path, width, height, fps)
	}
}

// coverSize scales iw x ih to the smallest even size covering w x h.
func coverSize(iw, ih, w, h int) (int, int) {
	k := math.Max(float64(w)/float64(iw), float64(h)/float64(ih))
	even := func(v float64) int {
		n := int(math.Ceil(v - 1e-6))
		return n + n%2
	}
	return even(float64(iw) * k), even(float64(ih) * k)
}

func (s *FFmpegSource) Duration() float64 { return s.info.Duration }
func (s *FFmpegSource) HasAudio() bool    { return s.info.HasAudio }

func (s *FFmpegSource) Seek(ctx context.Context, instant float64) (image.Image, float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	frameDur := 1 / float64(s.fps)
	if instant < 0 {
		instant = 0
	}
	target, reported := clampToEnd(instant, s.knownEnd(ctx), frameDur)
	img, pos, err := s.seek(ctx, target, frameDur)
	if err == nil && target < instant {
		pos = reported
	}
	return img, pos, err
}

// clampToEnd keeps the decode target on the last frame of a source ending
// at end. Past that frame the reported position is the requested instant,
// capped at end, so seeking far ahead reveals the true duration.
func clampToEnd(instant, end, frameDur float64) (target, reported float64) {
	if end <= 0 || instant <= end-frameDur {
		return instant, instant
	}
	return math.Max(0, end-frameDur), math.Min(instant, end)
}

func (s *FFmpegSource) seek(ctx context.Context, instant, frameDur float64) (image.Image, float64, error) {
	if s.have && math.Abs(instant-s.pos) < frameDur/2 {
		return s.front, s.pos, nil
	}

	if s.dec == nil || instant < s.dec.next(s.fps)-frameDur/2 || instant-s.dec.next(s.fps) > restartGap {
		if err := s.restart(instant); err != nil {
			return nil, 0, err
		}
	}

	for {
		t := s.dec.next(s.fps)
		if err := s.readFrame(ctx); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				s.stop()
				if s.have {
					return s.front, s.pos, nil
				}
				return nil, 0, fmt.Errorf("seek %.3f: no frame decoded", instant)
			}
			return nil, 0, err
		}
		s.pos = t
		s.have = true
		if t >= instant-frameDur/2 {
			return s.front, s.pos, nil
		}
	}
}

// knownEnd is the probed duration, or the last packet time when the
// container does not report one.
func (s *FFmpegSource) knownEnd(ctx context.Context) float64 {
	if d := s.info.Duration; d > 0 && !math.IsInf(d, 0) {
		return d
	}
	if s.end == 0 {
		s.end = -1
		if end, err := lastPacketTime(ctx, s.ffprobe, s.path); err == nil && end > 0 {
			s.end = end
		}
	}
	return s.end
}

func (s *FFmpegSource) restart(at float64) error {
	s.stop()
	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-ss", strconv.FormatFloat(at, 'f', 3, 64),
		"-i", s.path,
		"-an",
		"-vf", fmt.Sprintf("scale=%d:%d,fps=%d", s.w, s.h, s.fps),
		"-f", "rawvideo", "-pix_fmt", "rgba",
		"pipe:1",
	}
	cmd := exec.Command(s.ffmpeg, args...)
	out, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("decoder pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("decoder start: %w", err)
	}
	s.dec = &decoder{cmd: cmd, out: out, start: at}
	return nil
}

// readFrame reads one frame into back and swaps it to front. A done ctx
// kills the decoder so the blocked read returns.
func (s *FFmpegSource) readFrame(ctx context.Context) error {
	dec := s.dec
	done := make(chan error, 1)
	go func() {
		_, err := io.ReadFull(dec.out, s.back.Pix)
		done <- err
	}()
	select {
	case err := <-done:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		if dec.cmd.Process != nil {
			dec.cmd.Process.Kill()
		}
		<-done
		s.stop()
		return ctx.Err()
	}
	dec.n++
	s.front, s.back = s.back, s.front
	return nil
}

func (s *FFmpegSource) stop() {
	if s.dec != nil {
		s.dec.kill()
		s.dec = nil
	}
}

func (s *FFmpegSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stop()
	return nil
}

// lastPacketTime scans the video packets of path and returns the end of the
// latest one.
func lastPacketTime(ctx context.Context, ffprobe, path string) (float64, error) {
	out, err := exec.CommandContext(ctx, ffprobe, "-v", "error", "-select_streams", "v:0",
		"-show_entries", "packet=pts_time,duration_time", "-of", "csv=p=0", path).Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe packets %s: %w", path, err)
	}
	return parsePacketTimes(out), nil
}

// parsePacketTimes reads "pts,duration" lines and returns the largest
// pts+duration. A missing duration counts as zero.
func parsePacketTimes(out []byte) float64 {
	var end float64
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		pts, dur, _ := strings.Cut(strings.TrimSpace(sc.Text()), ",")
		v, err := strconv.ParseFloat(pts, 64)
		if err != nil {
			continue
		}
		if d, err := strconv.ParseFloat(strings.TrimSpace(dur), 64); err == nil && d > 0 {
			v += d
		}
		if v > end {
			end = v
		}
	}
	return end
}
