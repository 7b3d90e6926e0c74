package system

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
)

func InitResourceLimits(log logrus.FieldLogger) {
	var rLimit syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		log.WithError(err).Warn("could not read open file limit")
		return
	}

	rLimit.Cur = 2048
	if rLimit.Cur > rLimit.Max {
		rLimit.Cur = rLimit.Max
	}

	if err := syscall.Setrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		log.WithError(err).Warn("could not raise open file limit")
		return
	}
	log.Debugf("open file limit raised to %d", rLimit.Cur)
}

var (
	VideoExtensions   = []string{".mp4", ".mov", ".m4v", ".mkv", ".webm"}
	ProjectExtensions = []string{".yaml", ".yml"}
)

// FindLatest returns the most recently modified file in dir with one of exts.
func FindLatest(dir string, exts []string) (string, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}

	var latestFile string
	var latestTime time.Time
	for _, f := range files {
		if f.IsDir() || !hasExt(f.Name(), exts) {
			continue
		}
		info, err := f.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(latestTime) {
			latestTime = info.ModTime()
			latestFile = filepath.Join(dir, f.Name())
		}
	}

	if latestFile == "" {
		return "", fmt.Errorf("no %s files in %s", strings.Join(exts, "/"), dir)
	}
	return latestFile, nil
}

func hasExt(name string, exts []string) bool {
	lower := strings.ToLower(name)
	for _, ext := range exts {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// VideoInfo is what ffprobe reports about a source recording.
type VideoInfo struct {
	Width    int
	Height   int
	FPS      float64
	Duration float64
	HasAudio bool
}

// ProbeDuration returns the container duration of path in seconds.
func ProbeDuration(ctx context.Context, ffprobe, path string) (float64, error) {
	cmd := exec.CommandContext(ctx, ffprobe, "-v", "error", "-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1", path)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return 0, fmt.Errorf("ffprobe %s: %w: %s", path, err, strings.TrimSpace(string(out)))
	}

	var duration float64
	if _, err := fmt.Sscanf(strings.TrimSpace(string(out)), "%f", &duration); err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", out, err)
	}
	return duration, nil
}

// ProbeVideo reports the first video stream of path and whether audio exists.
func ProbeVideo(ctx context.Context, ffprobe, path string) (VideoInfo, error) {
	cmd := exec.CommandContext(ctx, ffprobe, "-v", "error",
		"-show_entries", "stream=codec_type,width,height,r_frame_rate:format=duration",
		"-of", "default=noprint_wrappers=1", path)
	out, err := cmd.Output()
	if err != nil {
		return VideoInfo{}, fmt.Errorf("ffprobe %s: %w", path, err)
	}
	return parseProbe(out)
}

func parseProbe(out []byte) (VideoInfo, error) {
	var info VideoInfo
	var streamType string
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(sc.Text()), "=")
		if !ok {
			continue
		}
		switch key {
		case "codec_type":
			streamType = value
			if value == "audio" {
				info.HasAudio = true
			}
		case "width":
			if streamType == "video" && info.Width == 0 {
				info.Width, _ = strconv.Atoi(value)
			}
		case "height":
			if streamType == "video" && info.Height == 0 {
				info.Height, _ = strconv.Atoi(value)
			}
		case "r_frame_rate":
			if streamType == "video" && info.FPS == 0 {
				info.FPS = parseRate(value)
			}
		case "duration":
			if d, err := strconv.ParseFloat(value, 64); err == nil {
				info.Duration = d
			}
		}
	}
	if info.Width == 0 || info.Height == 0 {
		return info, fmt.Errorf("no video stream")
	}
	return info, nil
}

func parseRate(s string) float64 {
	num, den, ok := strings.Cut(s, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	if !ok {
		return n
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return n / d
}

// Encoders lists the video encoders compiled into ffmpeg.
func Encoders(ctx context.Context, ffmpeg string) (map[string]bool, error) {
	out, err := exec.CommandContext(ctx, ffmpeg, "-hide_banner", "-encoders").Output()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg -encoders: %w", err)
	}
	return parseEncoders(out), nil
}

func parseEncoders(out []byte) map[string]bool {
	found := make(map[string]bool)
	started := false
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if strings.HasPrefix(line, "------") {
			started = true
			continue
		}
		fields := strings.Fields(line)
		if !started || len(fields) < 2 {
			continue
		}
		// flags column: first letter V for video encoders
		if strings.HasPrefix(fields[0], "V") {
			found[fields[1]] = true
		}
	}
	return found
}

// CaptureCodecs filters preference down to the encoders ffmpeg offers,
// keeping preference order.
func CaptureCodecs(available map[string]bool, preference []string) []string {
	var out []string
	for _, name := range preference {
		if available[name] {
			out = append(out, name)
		}
	}
	return out
}

// EncoderWorks test-encodes one tiny frame with codec. Listed hardware
// encoders fail here when the device is missing.
func EncoderWorks(ctx context.Context, ffmpeg, codec string) bool {
	cmd := exec.CommandContext(ctx, ffmpeg, "-hide_banner", "-loglevel", "error",
		"-f", "lavfi", "-i", "color=c=black:s=64x64:d=0.1",
		"-frames:v", "1", "-pix_fmt", "yuv420p", "-c:v", codec, "-f", "null", "-")
	return cmd.Run() == nil
}

// UsableEncoders returns the preferred codecs that ffmpeg lists and can
// actually open, in preference order.
func UsableEncoders(ctx context.Context, ffmpeg string, preference []string) ([]string, error) {
	available, err := Encoders(ctx, ffmpeg)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, codec := range CaptureCodecs(available, preference) {
		if EncoderWorks(ctx, ffmpeg, codec) {
			out = append(out, codec)
		}
	}
	return out, nil
}
