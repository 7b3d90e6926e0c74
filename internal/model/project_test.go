package model

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestActiveCaptionEarliestStartWins(t *testing.T) {
	p := &Project{
		Captions: []Caption{
			{TimeInterval: TimeInterval{ID: "late", Start: 0.5, End: 2.0}, Text: "second"},
			{TimeInterval: TimeInterval{ID: "early", Start: 0, End: 1.0}, Text: "first"},
		},
	}

	c, ok := p.ActiveCaption(0.7)
	if !ok {
		t.Fatal("expected an active caption at 0.7")
	}
	if c.ID != "early" {
		t.Errorf("expected caption starting at 0 to win, got %s", c.ID)
	}

	c, ok = p.ActiveCaption(1.5)
	if !ok || c.ID != "late" {
		t.Errorf("expected late caption at 1.5, got %+v", c)
	}

	if _, ok := p.ActiveCaption(2.5); ok {
		t.Error("expected no caption after every interval ended")
	}
}

func TestActiveCutawayFirstByStart(t *testing.T) {
	p := &Project{
		Cutaways: []Cutaway{
			{TimeInterval: TimeInterval{ID: "b", Start: 2, End: 6}},
			{TimeInterval: TimeInterval{ID: "a", Start: 1, End: 4}},
		},
	}
	c, ok := p.ActiveCutaway(3)
	if !ok || c.ID != "a" {
		t.Fatalf("expected cutaway a, got %+v", c)
	}
}

func TestBrandingGates(t *testing.T) {
	b := Branding{Watermark: true, CTA: CTAFollow}

	tests := []struct {
		name      string
		instant   float64
		duration  float64
		watermark bool
		cta       bool
	}{
		{"before watermark window", 1.0, 10, false, false},
		{"watermark shown", 2.0, 10, true, false},
		{"watermark last instant", 6.5, 10, true, false},
		{"watermark hidden before cta", 6.8, 10, false, false},
		{"cta in final seconds", 7.5, 10, false, true},
		{"too short for branding", 4.0, 5.9, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := b.WatermarkVisible(tt.instant, tt.duration); got != tt.watermark {
				t.Errorf("WatermarkVisible = %v, want %v", got, tt.watermark)
			}
			if got := b.CTAVisible(tt.instant, tt.duration); got != tt.cta {
				t.Errorf("CTAVisible = %v, want %v", got, tt.cta)
			}
		})
	}
}

func TestReadProjectNormalizes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "project.yaml")
	doc := `
source: talk.mp4
captions:
  - start: 0
    end: 1.5
    text: hello world
effects:
  - start: 0
    end: 2.5
    type: zoom-in
    params:
      scale: 1.25
      focusX: 0.5
      focusY: 0.35
cutaways:
  - start: 3
    end: 5
    source: broll.png
`
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}

	p, err := ReadProject(path)
	if err != nil {
		t.Fatalf("ReadProject failed: %v", err)
	}

	if p.Captions[0].ID == "" || p.Effects[0].ID == "" || p.Cutaways[0].ID == "" {
		t.Error("expected ids to be assigned")
	}
	if p.Captions[0].Animation != CaptionKaraoke {
		t.Errorf("expected default karaoke animation, got %s", p.Captions[0].Animation)
	}
	if p.Cutaways[0].Position != PositionFullscreen {
		t.Errorf("expected default fullscreen cutaway, got %s", p.Cutaways[0].Position)
	}
	if got := p.Effects[0].Params.Float("scale", 0); got != 1.25 {
		t.Errorf("expected scale 1.25, got %f", got)
	}
}

func TestReadProjectRejectsUnknownEffect(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	doc := "effects:\n  - start: 0\n    end: 1\n    type: spin\n"
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := ReadProject(path)
	if err == nil || !strings.Contains(err.Error(), "spin") {
		t.Fatalf("expected unknown effect error, got %v", err)
	}
}

func TestParseHexColor(t *testing.T) {
	c, err := ParseHexColor("#ff8000")
	if err != nil {
		t.Fatal(err)
	}
	if c.R != 255 || c.G != 128 || c.B != 0 || c.A != 255 {
		t.Errorf("unexpected color %+v", c)
	}

	c, err = ParseHexColor("#fff")
	if err != nil || c.R != 255 || c.B != 255 {
		t.Errorf("short form failed: %+v %v", c, err)
	}

	if _, err := ParseHexColor("nope"); err == nil {
		t.Error("expected error for malformed color")
	}
}
