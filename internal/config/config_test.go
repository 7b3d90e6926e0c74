package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	c, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Render.FPS != 30 || c.Render.Aspect != "vertical" || c.Render.Quality != "high" {
		t.Errorf("unexpected render defaults: %+v", c.Render)
	}
	if c.Preview.ReconcileThreshold != 50*time.Millisecond {
		t.Errorf("expected 50ms reconcile threshold, got %v", c.Preview.ReconcileThreshold)
	}
	if len(c.Export.Codecs) != 4 || c.Export.Codecs[0] != "h264_videotoolbox" {
		t.Errorf("unexpected codec order: %v", c.Export.Codecs)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "talkreel.yaml")
	data := []byte(`
render:
  fps: 25
  aspect: square
  quality: standard
export:
  seek_timeout: 500ms
  codecs: [libx264]
logging:
  level: debug
`)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TALKREEL_LOGGING_FORMAT", "json")

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Render.FPS != 25 || c.Render.Aspect != "square" || c.Render.Quality != "standard" {
		t.Errorf("file values not applied: %+v", c.Render)
	}
	if c.Export.SeekTimeout != 500*time.Millisecond {
		t.Errorf("expected 500ms seek timeout, got %v", c.Export.SeekTimeout)
	}
	if len(c.Export.Codecs) != 1 || c.Export.Codecs[0] != "libx264" {
		t.Errorf("expected codec override, got %v", c.Export.Codecs)
	}
	if c.Logging.Format != "json" {
		t.Errorf("expected env override for logging.format, got %q", c.Logging.Format)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"zero value gets defaults", Config{}, false},
		{"bad aspect", Config{Render: RenderConfig{Aspect: "cinema"}}, true},
		{"bad quality", Config{Render: RenderConfig{Quality: "ultra"}}, true},
		{"bad fps", Config{Render: RenderConfig{FPS: 500}}, true},
		{"bad theme", Config{Render: RenderConfig{Theme: "sepia"}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestOutput(t *testing.T) {
	tests := []struct {
		aspect, quality string
		want            Resolution
		bitrate         int
	}{
		{"vertical", "high", Resolution{1080, 1920}, 8000},
		{"vertical", "standard", Resolution{540, 960}, 4000},
		{"square", "standard", Resolution{540, 540}, 4000},
		{"landscape", "high", Resolution{1920, 1080}, 8000},
	}
	for _, tt := range tests {
		res, bitrate, err := Output(tt.aspect, tt.quality)
		if err != nil {
			t.Fatalf("%s/%s: %v", tt.aspect, tt.quality, err)
		}
		if res != tt.want || bitrate != tt.bitrate {
			t.Errorf("%s/%s: got %v %d, want %v %d", tt.aspect, tt.quality, res, bitrate, tt.want, tt.bitrate)
		}
	}

	if _, _, err := Output("cinema", "high"); !errors.Is(err, ErrUnknownPreset) {
		t.Errorf("expected ErrUnknownPreset, got %v", err)
	}
}
