package export

import (
	"image"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRecorderArgs(t *testing.T) {
	spec := CaptureSpec{Path: "out.mp4", Width: 540, Height: 960, FPS: 30, BitrateKbps: 4000, Duration: 12.5, Audio: true, SampleRate: 44100}
	args := strings.Join(recorderArgs("libx264", spec), " ")

	for _, want := range []string{
		"-video_size 540x960",
		"-use_wallclock_as_timestamps 1",
		"-i pipe:0",
		"-f s16le -ar 44100 -ac 2",
		"-i pipe:3",
		"-c:v libx264",
		"-crf 20",
		"-maxrate 4000k",
		"-t 12.500",
		"out.mp4",
	} {
		if !strings.Contains(args, want) {
			t.Errorf("args missing %q: %s", want, args)
		}
	}

	spec.Audio = false
	if silent := strings.Join(recorderArgs("mpeg4", spec), " "); strings.Contains(silent, "pipe:3") {
		t.Errorf("silent capture must not read an audio pipe: %s", silent)
	}
}

func TestQualityArgs(t *testing.T) {
	tests := []struct {
		codec string
		want  string
	}{
		{"h264_videotoolbox", "-b:v 8000k -realtime 1"},
		{"h264_nvenc", "-preset p4 -rc vbr -cq 23 -b:v 8000k"},
		{"libx264", "-preset veryfast -crf 20 -maxrate 8000k -bufsize 16000k"},
		{"mpeg4", "-b:v 8000k"},
	}
	for _, tt := range tests {
		if got := strings.Join(qualityArgs(tt.codec, 8000), " "); got != tt.want {
			t.Errorf("qualityArgs(%s) = %q, want %q", tt.codec, got, tt.want)
		}
	}
}

func TestCoverSize(t *testing.T) {
	tests := []struct {
		iw, ih, w, h int
		ww, wh       int
	}{
		{1920, 1080, 1080, 1920, 3414, 1920},
		{1080, 1920, 1080, 1920, 1080, 1920},
		{640, 480, 540, 540, 720, 540},
	}
	for _, tt := range tests {
		w, h := coverSize(tt.iw, tt.ih, tt.w, tt.h)
		if w != tt.ww || h != tt.wh {
			t.Errorf("coverSize(%d, %d, %d, %d) = %dx%d, want %dx%d", tt.iw, tt.ih, tt.w, tt.h, w, h, tt.ww, tt.wh)
		}
		if w < tt.w || h < tt.h {
			t.Errorf("%dx%d does not cover %dx%d", w, h, tt.w, tt.h)
		}
	}
}

func TestParsePacketTimes(t *testing.T) {
	out := []byte("0.000000,0.033333\n0.033333,0.033333\nN/A,N/A\n9.966667,0.033333\n9.933333,0.033333\n")
	if got := parsePacketTimes(out); math.Abs(got-10) > 1e-6 {
		t.Errorf("expected the last packet to end at 10, got %v", got)
	}
	if got := parsePacketTimes([]byte("4.966667,\n4.933333,N/A\n")); got != 4.966667 {
		t.Errorf("missing durations count as zero, got %v", got)
	}
}

func TestClampToEnd(t *testing.T) {
	const fd = 1.0 / 30
	tests := []struct {
		name             string
		instant, end     float64
		target, reported float64
	}{
		{"unknown end", 50, 0, 50, 50},
		{"inside", 4, 10, 4, 4},
		{"far past the end", 1e9, 10, 10 - fd, 10},
		{"within the last frame", 9.99, 10, 10 - fd, 9.99},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target, reported := clampToEnd(tt.instant, tt.end, fd)
			if math.Abs(target-tt.target) > 1e-9 || math.Abs(reported-tt.reported) > 1e-9 {
				t.Errorf("clampToEnd(%v, %v) = %v, %v; want %v, %v",
					tt.instant, tt.end, target, reported, tt.target, tt.reported)
			}
		})
	}
}

func TestMJPEGRecorder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.avi")
	rec, err := StartMJPEGRecorder(CaptureSpec{Path: path, Width: 32, Height: 16, FPS: 10})
	if err != nil {
		t.Fatalf("StartMJPEGRecorder: %v", err)
	}
	if rec.AudioSink() != nil {
		t.Error("MJPEG capture has no audio input")
	}
	frame := image.NewRGBA(image.Rect(0, 0, 32, 16))
	for i := 0; i < 3; i++ {
		if err := rec.WriteFrame(frame); err != nil {
			t.Fatalf("WriteFrame: %v", err)
		}
	}
	if err := rec.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) < 12 || string(data[:4]) != "RIFF" || string(data[8:12]) != "AVI " {
		t.Errorf("output is not an AVI container")
	}
}

func TestMJPEGRecorderAbort(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.avi")
	rec, err := StartMJPEGRecorder(CaptureSpec{Path: path, Width: 8, Height: 8, FPS: 10})
	if err != nil {
		t.Fatal(err)
	}
	rec.Abort()
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("expected the file to be removed, stat err = %v", err)
	}
}
