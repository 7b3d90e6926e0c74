package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Render  RenderConfig  `mapstructure:"render"`
	Export  ExportConfig  `mapstructure:"export"`
	Preview PreviewConfig `mapstructure:"preview"`
	Logging LoggingConfig `mapstructure:"logging"`
}

type RenderConfig struct {
	FPS        int    `mapstructure:"fps"`
	Aspect     string `mapstructure:"aspect"`  // vertical, square, landscape
	Quality    string `mapstructure:"quality"` // standard, high
	Background string `mapstructure:"background"`
	Detector   string `mapstructure:"detector"` // theme analysis variant
	Theme      string `mapstructure:"theme"`    // auto, dark, light
}

type ExportConfig struct {
	OutputDir       string        `mapstructure:"output_dir"`
	SeekTimeout     time.Duration `mapstructure:"seek_timeout"`
	Codecs          []string      `mapstructure:"codecs"`
	AudioSampleRate int           `mapstructure:"audio_sample_rate"`
	FFmpegPath      string        `mapstructure:"ffmpeg_path"`
	FFprobePath     string        `mapstructure:"ffprobe_path"`
	PreloadWorkers  int           `mapstructure:"preload_workers"`
	ShowStats       bool          `mapstructure:"show_stats"`
	BenchmarkLog    string        `mapstructure:"benchmark_log"`
}

type PreviewConfig struct {
	Addr               string        `mapstructure:"addr"`
	TickRate           int           `mapstructure:"tick_rate"` // ticks per second
	Epsilon            float64       `mapstructure:"epsilon"`   // seconds
	ReconcileThreshold time.Duration `mapstructure:"reconcile_threshold"`
	Debounce           time.Duration `mapstructure:"debounce"`
	Watch              bool          `mapstructure:"watch"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Resolution is a canvas size in pixels.
type Resolution struct {
	Width  int
	Height int
}

// Aspects maps aspect preset names to their full-quality resolution.
var Aspects = map[string]Resolution{
	"vertical":  {1080, 1920},
	"square":    {1080, 1080},
	"landscape": {1920, 1080},
}

// qualityScale maps quality tiers to a resolution and bitrate factor.
var qualityScale = map[string]float64{
	"standard": 0.5,
	"high":     1.0,
}

const baseBitrate = 8000 // kbit/s at high quality

// DefaultCodecs is the capture fallback order.
var DefaultCodecs = []string{"h264_videotoolbox", "h264_nvenc", "libx264", "mpeg4"}

// Load reads an optional YAML file and TALKREEL_* environment overrides.
// An empty path loads defaults and environment only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("TALKREEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("render.fps", 30)
	v.SetDefault("render.aspect", "vertical")
	v.SetDefault("render.quality", "high")
	v.SetDefault("render.background", "#000000")
	v.SetDefault("render.detector", "contrast")
	v.SetDefault("render.theme", "auto")

	v.SetDefault("export.output_dir", ".")
	v.SetDefault("export.seek_timeout", 2*time.Second)
	v.SetDefault("export.codecs", DefaultCodecs)
	v.SetDefault("export.audio_sample_rate", 48000)
	v.SetDefault("export.ffmpeg_path", "ffmpeg")
	v.SetDefault("export.ffprobe_path", "ffprobe")
	v.SetDefault("export.preload_workers", 4)
	v.SetDefault("export.show_stats", true)
	v.SetDefault("export.benchmark_log", "benchmark.log")

	v.SetDefault("preview.addr", "127.0.0.1:8090")
	v.SetDefault("preview.tick_rate", 60)
	v.SetDefault("preview.epsilon", 0.01)
	v.SetDefault("preview.reconcile_threshold", 50*time.Millisecond)
	v.SetDefault("preview.debounce", 150*time.Millisecond)
	v.SetDefault("preview.watch", true)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// Validate rejects unusable values and fills the zero ones with defaults.
func (c *Config) Validate() error {
	if c.Render.FPS < 0 || c.Render.FPS > 120 {
		return fmt.Errorf("render.fps must be in 1..120, got %d", c.Render.FPS)
	}
	if c.Render.FPS == 0 {
		c.Render.FPS = 30
	}
	if c.Render.Aspect == "" {
		c.Render.Aspect = "vertical"
	}
	if _, ok := Aspects[c.Render.Aspect]; !ok {
		return fmt.Errorf("render.aspect: unknown preset %q", c.Render.Aspect)
	}
	if c.Render.Quality == "" {
		c.Render.Quality = "high"
	}
	if _, ok := qualityScale[c.Render.Quality]; !ok {
		return fmt.Errorf("render.quality: unknown tier %q", c.Render.Quality)
	}
	if c.Render.Background == "" {
		c.Render.Background = "#000000"
	}
	switch c.Render.Theme {
	case "":
		c.Render.Theme = "auto"
	case "auto", "dark", "light":
	default:
		return fmt.Errorf("render.theme: unknown theme %q", c.Render.Theme)
	}

	if c.Export.OutputDir == "" {
		c.Export.OutputDir = "."
	}
	if c.Export.SeekTimeout <= 0 {
		c.Export.SeekTimeout = 2 * time.Second
	}
	if len(c.Export.Codecs) == 0 {
		c.Export.Codecs = append([]string(nil), DefaultCodecs...)
	}
	if c.Export.AudioSampleRate == 0 {
		c.Export.AudioSampleRate = 48000
	}
	if c.Export.FFmpegPath == "" {
		c.Export.FFmpegPath = "ffmpeg"
	}
	if c.Export.FFprobePath == "" {
		c.Export.FFprobePath = "ffprobe"
	}
	if c.Export.PreloadWorkers <= 0 {
		c.Export.PreloadWorkers = 4
	}

	if c.Preview.Addr == "" {
		c.Preview.Addr = "127.0.0.1:8090"
	}
	if c.Preview.TickRate <= 0 {
		c.Preview.TickRate = 60
	}
	if c.Preview.Epsilon <= 0 {
		c.Preview.Epsilon = 0.01
	}
	if c.Preview.ReconcileThreshold <= 0 {
		c.Preview.ReconcileThreshold = 50 * time.Millisecond
	}
	if c.Preview.Debounce <= 0 {
		c.Preview.Debounce = 150 * time.Millisecond
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	return nil
}

// ErrUnknownPreset is returned for an aspect or quality name outside the presets.
var ErrUnknownPreset = errors.New("unknown preset")

// Output returns the capture resolution and video bitrate (kbit/s) for an
// aspect preset and quality tier. Dimensions are rounded to even values for
// yuv420p.
func Output(aspect, quality string) (Resolution, int, error) {
	base, ok := Aspects[aspect]
	if !ok {
		return Resolution{}, 0, fmt.Errorf("aspect %q: %w", aspect, ErrUnknownPreset)
	}
	k, ok := qualityScale[quality]
	if !ok {
		return Resolution{}, 0, fmt.Errorf("quality %q: %w", quality, ErrUnknownPreset)
	}
	even := func(v float64) int { return int(v/2) * 2 }
	return Resolution{
		Width:  even(float64(base.Width) * k),
		Height: even(float64(base.Height) * k),
	}, int(baseBitrate * k), nil
}

// Output returns the capture resolution and bitrate of c's render settings.
func (c *Config) Output() (Resolution, int, error) {
	return Output(c.Render.Aspect, c.Render.Quality)
}
