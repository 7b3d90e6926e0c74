package compositor

import (
	"sort"
	"testing"

	"github.com/ivlev/talkreel/internal/model"
)

func fullProject() *model.Project {
	return &model.Project{
		Source: "talk.mp4",
		Captions: []model.Caption{
			{
				TimeInterval: model.TimeInterval{ID: "late", Start: 0.5, End: 2},
				Text:         "second line",
			},
			{
				TimeInterval: model.TimeInterval{ID: "early", Start: 0, End: 1},
				Text:         "make more money today",
				Emphasis:     []string{"money"},
				Animation:    model.CaptionKaraoke,
				KeywordLabel: "MONEY",
			},
		},
		Effects: []model.Effect{
			{TimeInterval: model.TimeInterval{ID: "v", Start: 0, End: 10}, Type: model.EffectVignette},
			{TimeInterval: model.TimeInterval{ID: "l", Start: 0, End: 10}, Type: model.EffectLetterbox},
			{TimeInterval: model.TimeInterval{ID: "f", Start: 0, End: 10}, Type: model.EffectTransitionFade},
		},
		Cutaways: []model.Cutaway{
			{
				TimeInterval: model.TimeInterval{ID: "cw", Start: 0, End: 10},
				Source:       "chart.png",
				Position:     model.PositionPiP,
				Cinematic:    true,
			},
		},
		Branding: model.Branding{DisplayName: "ivlev", Watermark: true, CTA: model.CTAFollow},
	}
}

func TestDescribeEarliestCaptionWins(t *testing.T) {
	c := New(model.DarkTheme(), 360, 640)
	f := c.Describe(fullProject(), 0.7, 10)
	if f.Caption == nil || f.Caption.ID != "early" {
		t.Fatalf("expected caption 'early' at 0.7, got %+v", f.Caption)
	}
	f = c.Describe(fullProject(), 1.5, 10)
	if f.Caption == nil || f.Caption.ID != "late" {
		t.Fatalf("expected caption 'late' at 1.5, got %+v", f.Caption)
	}
}

func TestDescribeKaraokeWords(t *testing.T) {
	th := model.DarkTheme()
	c := New(th, 360, 640)
	// "make more money today" over [0,1]; shares 4/18, 8/18, 13/18, 1
	f := c.Describe(fullProject(), 0.5, 10)
	words := f.Caption.Words
	if len(words) != 4 {
		t.Fatalf("expected 4 words, got %d", len(words))
	}
	if f.Caption.ActiveWord != 2 {
		t.Fatalf("expected active word 2, got %d", f.Caption.ActiveWord)
	}
	if words[0].Phase != WordPast || words[0].Opacity != th.PastOpacity {
		t.Errorf("unexpected past word %+v", words[0])
	}
	if words[3].Phase != WordFuture || words[3].Opacity != th.FutureOpacity {
		t.Errorf("unexpected future word %+v", words[3])
	}
	// the active word is also an emphasis keyword: emphasis colour wins
	if !words[2].Glow || words[2].Color != th.Emphasis {
		t.Errorf("expected glowing emphasis colour on active word, got %+v", words[2])
	}
	if words[1].Color != th.Text {
		t.Errorf("expected base colour for a plain word, got %+v", words[1].Color)
	}
}

func TestDescribeSuppressesDuplicateSubtitle(t *testing.T) {
	p := fullProject()
	p.Captions[1].KeywordLabel = "  Make more MONEY today"
	f := New(model.DarkTheme(), 360, 640).Describe(p, 0.2, 10)
	if f.Caption.ShowSubtitle || len(f.Caption.Words) != 0 {
		t.Errorf("expected the subtitle to be suppressed, got %+v", f.Caption)
	}
	if f.Caption.Label == "" {
		t.Error("expected the label to remain")
	}
}

func TestDescribeLayerOrder(t *testing.T) {
	c := New(model.DarkTheme(), 360, 640)
	p := fullProject()
	p.Captions[0].End = 10
	p.Captions[0].Start = 0

	// watermark window [2, 6.5] and CTA window [7, 10] never overlap,
	// so check each half separately
	early := c.Describe(p, 5, 10).Layers()
	want := []Layer{LayerBackground, LayerSource, LayerCutaway, LayerGradient, LayerTransition,
		LayerVignette, LayerLetterbox, LayerCaption, LayerWatermark}
	if !equalLayers(early, want) {
		t.Errorf("got %v, want %v", early, want)
	}

	late := c.Describe(p, 9, 10).Layers()
	if late[len(late)-1] != LayerCTA {
		t.Errorf("expected CTA on top, got %v", late)
	}
	for _, ls := range [][]Layer{early, late} {
		if !sort.SliceIsSorted(ls, func(i, j int) bool { return ls[i] < ls[j] }) {
			t.Errorf("layers out of order: %v", ls)
		}
	}
}

func TestDescribeBrandingNeedsLongVideo(t *testing.T) {
	c := New(model.DarkTheme(), 360, 640)
	f := c.Describe(fullProject(), 4, 5)
	if f.Watermark != nil || f.CTA != nil {
		t.Errorf("expected no branding on a 5s video, got %+v %+v", f.Watermark, f.CTA)
	}
	f = c.Describe(fullProject(), 3, 10)
	if f.Watermark == nil || f.Watermark.Text != "@ivlev" {
		t.Errorf("expected watermark '@ivlev', got %+v", f.Watermark)
	}
}

func TestCutawayBoxesStayOnCanvas(t *testing.T) {
	for _, size := range [][2]int{{1080, 1920}, {1080, 1080}, {1920, 1080}} {
		c := New(model.DarkTheme(), size[0], size[1])
		for _, mode := range []model.PositionMode{model.PositionFullscreen, model.PositionPiP, model.PositionInset, model.PositionSplit} {
			b := c.cutawayBox(mode)
			if b.X < 0 || b.Y < 0 || b.X+b.W > 1+1e-9 || b.Y+b.H > 1+1e-9 {
				t.Errorf("%v %s: box %+v leaves the canvas", size, mode, b)
			}
		}
	}
}

func TestCanvasLease(t *testing.T) {
	var c Canvas
	if err := c.Acquire("export"); err != nil {
		t.Fatal(err)
	}
	if err := c.Acquire("export"); err != nil {
		t.Errorf("re-acquire by the owner should succeed: %v", err)
	}
	if err := c.Acquire("other"); err != ErrCanvasBusy {
		t.Errorf("expected ErrCanvasBusy, got %v", err)
	}
	if !c.Leased("preview") {
		t.Error("expected canvas to be leased away from preview")
	}
	c.Release("other")
	if c.Owner() != "export" {
		t.Error("release by a non-owner must not free the canvas")
	}
	c.Release("export")
	if c.Owner() != "" {
		t.Error("expected canvas to be free")
	}
}

func equalLayers(a, b []Layer) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
