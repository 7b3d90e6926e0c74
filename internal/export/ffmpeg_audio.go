package export

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
)

// FFmpegAudioTap decodes the source audio in real time (-re) so it stays in
// step with paced video frames.
type FFmpegAudioTap struct {
	ffmpeg     string
	path       string
	sampleRate int

	mu     sync.Mutex
	cmd    *exec.Cmd
	sink   io.WriteCloser
	stderr bytes.Buffer
}

// AudioTaps returns a tap factory for Driver.Audio.
func AudioTaps(ffmpeg string) func(path string, sampleRate int) AudioTap {
	return func(path string, sampleRate int) AudioTap {
		return &FFmpegAudioTap{ffmpeg: ffmpeg, path: path, sampleRate: sampleRate}
	}
}

// Start begins playback into sink. Stop closes sink.
func (t *FFmpegAudioTap) Start(ctx context.Context, sink io.WriteCloser) error {
	if sink == nil {
		return fmt.Errorf("audio tap: recorder has no audio input")
	}
	rate := t.sampleRate
	if rate <= 0 {
		rate = 48000
	}
	cmd := exec.CommandContext(ctx, t.ffmpeg,
		"-hide_banner", "-loglevel", "error",
		"-re", "-i", t.path,
		"-vn", "-f", "s16le", "-ar", strconv.Itoa(rate), "-ac", "2",
		"pipe:1")
	cmd.Stdout = sink
	cmd.Stderr = &t.stderr
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("audio tap start: %w", err)
	}

	t.mu.Lock()
	t.cmd = cmd
	t.sink = sink
	t.mu.Unlock()
	return nil
}

func (t *FFmpegAudioTap) Stop() error {
	t.mu.Lock()
	cmd, sink := t.cmd, t.sink
	t.cmd, t.sink = nil, nil
	t.mu.Unlock()
	if cmd == nil {
		return nil
	}

	if cmd.ProcessState == nil && cmd.Process != nil {
		cmd.Process.Kill()
	}
	err := cmd.Wait()
	sink.Close()
	if err != nil && cmd.ProcessState != nil && !cmd.ProcessState.Exited() {
		// killed on purpose
		return nil
	}
	if err != nil {
		return fmt.Errorf("audio tap: %w: %s", err, strings.TrimSpace(t.stderr.String()))
	}
	return nil
}
