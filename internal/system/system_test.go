package system

import (
	"image"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"
)

const encodersOutput = `Encoders:
 V..... = Video
 A..... = Audio
 ------
 V....D libx264              libx264 H.264 / AVC / MPEG-4 AVC / MPEG-4 part 10 (codec h264)
 V....D h264_videotoolbox    VideoToolbox H.264 Encoder (codec h264)
 V.S... mpeg4                MPEG-4 part 2
 A....D aac                  AAC (Advanced Audio Coding)
`

func TestParseEncoders(t *testing.T) {
	got := parseEncoders([]byte(encodersOutput))
	for _, name := range []string{"libx264", "h264_videotoolbox", "mpeg4"} {
		if !got[name] {
			t.Errorf("expected %s to be found", name)
		}
	}
	if got["aac"] {
		t.Error("audio encoders must be ignored")
	}
	if got["="] || got["Video"] {
		t.Error("legend lines must be ignored")
	}
}

func TestCaptureCodecsKeepsPreferenceOrder(t *testing.T) {
	available := parseEncoders([]byte(encodersOutput))
	got := CaptureCodecs(available, []string{"h264_videotoolbox", "h264_nvenc", "libx264", "mpeg4"})
	want := []string{"h264_videotoolbox", "libx264", "mpeg4"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestParseProbe(t *testing.T) {
	out := strings.Join([]string{
		"codec_type=video", "width=1920", "height=1080", "r_frame_rate=30000/1001",
		"codec_type=audio", "r_frame_rate=0/0",
		"duration=12.500000",
	}, "\n")
	info, err := parseProbe([]byte(out))
	if err != nil {
		t.Fatal(err)
	}
	if info.Width != 1920 || info.Height != 1080 || !info.HasAudio {
		t.Errorf("unexpected info %+v", info)
	}
	if info.FPS < 29.96 || info.FPS > 29.98 {
		t.Errorf("expected ~29.97 fps, got %f", info.FPS)
	}
	if info.Duration != 12.5 {
		t.Errorf("expected 12.5s, got %f", info.Duration)
	}

	if _, err := parseProbe([]byte("codec_type=audio\n")); err == nil {
		t.Error("expected an error without a video stream")
	}
}

func TestFindLatest(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "old.mp4")
	fresh := filepath.Join(dir, "fresh.MOV")
	other := filepath.Join(dir, "notes.txt")
	for _, p := range []string{old, fresh, other} {
		if err := os.WriteFile(p, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	past := time.Now().Add(-time.Hour)
	if err := os.Chtimes(old, past, past); err != nil {
		t.Fatal(err)
	}

	got, err := FindLatest(dir, VideoExtensions)
	if err != nil {
		t.Fatal(err)
	}
	if got != fresh {
		t.Errorf("got %s, want %s", got, fresh)
	}
	if _, err := FindLatest(dir, ProjectExtensions); err == nil {
		t.Error("expected an error when nothing matches")
	}
}

func TestImagePoolReuse(t *testing.T) {
	p := NewImagePool()
	r := image.Rect(0, 0, 8, 4)
	img := p.Get(r)
	if img.Rect != r {
		t.Fatalf("got bounds %v", img.Rect)
	}
	p.Put(img)
	if got := p.Get(image.Rect(0, 0, 4, 8)); got.Rect != image.Rect(0, 0, 4, 8) {
		t.Errorf("pool handed out a raster of the wrong size: %v", got.Rect)
	}
	p.Put(nil)
}

func TestImagePoolConcurrent(t *testing.T) {
	p := NewImagePool()
	rects := []image.Rectangle{image.Rect(0, 0, 16, 9), image.Rect(0, 0, 9, 16)}
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(r image.Rectangle) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				img := p.Get(r)
				if img.Rect != r {
					t.Errorf("got bounds %v, want %v", img.Rect, r)
					return
				}
				p.Put(img)
			}
		}(rects[i%2])
	}
	wg.Wait()
}

func TestAppendBenchmark(t *testing.T) {
	path := filepath.Join(t.TempDir(), "benchmark.log")
	for _, line := range []string{"first", "second"} {
		if err := AppendBenchmark(path, line); err != nil {
			t.Fatal(err)
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "first\nsecond\n" {
		t.Errorf("unexpected log %q", data)
	}
}

func TestSampleUsage(t *testing.T) {
	u, err := SampleUsage()
	if err != nil {
		t.Skipf("process stats unavailable: %v", err)
	}
	if u.RSSBytes == 0 {
		t.Error("expected a non-zero RSS for the test process")
	}
}
