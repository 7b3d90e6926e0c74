package preview

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ivlev/talkreel/internal/compositor"
	"github.com/ivlev/talkreel/internal/export"
	"github.com/ivlev/talkreel/internal/logging"
	"github.com/ivlev/talkreel/internal/model"
)

func testProject() *model.Project {
	return &model.Project{
		Source:   "talk.mp4",
		Duration: 4,
		Captions: []model.Caption{
			{TimeInterval: model.TimeInterval{ID: "c1", Start: 0, End: 2}, Text: "hello preview"},
		},
	}
}

type testServer struct {
	cfg    ServerConfig
	driver *Driver
	srv    *httptest.Server
}

func newTestServer(t *testing.T, exp *export.Driver) *testServer {
	t.Helper()
	painter, err := compositor.NewPainter()
	if err != nil {
		t.Fatal(err)
	}
	log := logging.Discard()
	canvas := &compositor.Canvas{}
	if exp != nil {
		exp.Canvas = canvas
		exp.Painter = painter
	}

	reg := NewRegistry()
	d := NewDriver(NewSimPlayer(4), canvas, DriverOptions{})
	reg.Add(d)

	cfg := ServerConfig{
		Logger:     log,
		Registry:   reg,
		Store:      NewStore(testProject()),
		Compositor: compositor.New(model.DarkTheme(), 36, 64),
		Painter:    painter,
		Canvas:     canvas,
		Hub:        NewHub(log),
		Export:     exp,
		ExportOptions: export.Options{
			Aspect: "vertical", Quality: "high",
			Width: 36, Height: 64, FPS: 10,
			OutputDir: t.TempDir(),
		},
		Theme:     model.DarkTheme(),
		StartTime: time.Now(),
	}
	d.OnPosition(FramePublisher(cfg))

	srv := httptest.NewServer(NewRouter(cfg))
	t.Cleanup(func() {
		cfg.Hub.Close()
		srv.Close()
	})
	return &testServer{cfg: cfg, driver: d, srv: srv}
}

func (ts *testServer) do(t *testing.T, method, path, body string) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, ts.srv.URL+path, rd)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, nil)
	resp := ts.do(t, http.MethodGet, "/health", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body HealthResponse
	decode(t, resp, &body)
	if body.Status != "ok" || body.Export != export.StateIdle {
		t.Errorf("unexpected health %+v", body)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("missing request id header")
	}
}

func TestFrameDescriptor(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := ts.do(t, http.MethodGet, "/frame?t=0.5", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var f compositor.Frame
	decode(t, resp, &f)
	if f.Instant != 0.5 || f.Caption == nil || f.Caption.ID != "c1" {
		t.Errorf("unexpected frame %+v", f)
	}

	resp = ts.do(t, http.MethodGet, "/frame?t=3", "")
	var late compositor.Frame
	decode(t, resp, &late)
	if late.Caption != nil {
		t.Error("caption must be gone after its interval")
	}

	if resp := ts.do(t, http.MethodGet, "/frame?t=abc", ""); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for a bad instant, got %d", resp.StatusCode)
	}
}

func TestFramePNG(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := ts.do(t, http.MethodGet, "/frame.png?t=0.5", "")
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "image/png" {
		t.Fatalf("status = %d, type = %s", resp.StatusCode, resp.Header.Get("Content-Type"))
	}
	img, err := png.Decode(resp.Body)
	if err != nil {
		t.Fatalf("png: %v", err)
	}
	if img.Bounds() != image.Rect(0, 0, 36, 64) {
		t.Errorf("unexpected bounds %v", img.Bounds())
	}

	if err := ts.cfg.Canvas.Acquire("export"); err != nil {
		t.Fatal(err)
	}
	defer ts.cfg.Canvas.Release("export")
	if resp := ts.do(t, http.MethodGet, "/frame.png?t=0.5", ""); resp.StatusCode != http.StatusConflict {
		t.Errorf("expected 409 while export owns the canvas, got %d", resp.StatusCode)
	}
}

func TestPlaybackControls(t *testing.T) {
	ts := newTestServer(t, nil)

	var state PlaybackResponse
	decode(t, ts.do(t, http.MethodPost, "/play", ""), &state)
	if !state.Playing || state.Driver != ts.driver.ID {
		t.Errorf("expected playing, got %+v", state)
	}
	decode(t, ts.do(t, http.MethodPost, "/pause", ""), &state)
	if state.Playing {
		t.Error("expected paused")
	}

	decode(t, ts.do(t, http.MethodPost, "/seek", `{"t": 3}`), &state)
	if state.Position != 3 {
		t.Errorf("expected position 3, got %v", state.Position)
	}
	if resp := ts.do(t, http.MethodPost, "/seek", `{"t": -1}`); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for a negative seek, got %d", resp.StatusCode)
	}
	if resp := ts.do(t, http.MethodPost, "/seek", `nope`); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for a bad body, got %d", resp.StatusCode)
	}
	if resp := ts.do(t, http.MethodPost, "/drivers/missing/activate", ""); resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for an unknown driver, got %d", resp.StatusCode)
	}
}

func TestWebsocketReceivesFrames(t *testing.T) {
	ts := newTestServer(t, nil)

	url := "ws" + strings.TrimPrefix(ts.srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for ts.cfg.Hub.Count() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscriber never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	ts.driver.SetPosition(1, time.Now())

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatal(err)
	}
	if msg.Type != "frame" || msg.Frame == nil || msg.Frame.Instant != 1 {
		t.Errorf("unexpected message %s", data)
	}
}

func TestExportUnavailable(t *testing.T) {
	ts := newTestServer(t, nil)
	if resp := ts.do(t, http.MethodPost, "/export", ""); resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", resp.StatusCode)
	}
}

type stillSource struct{}

func (stillSource) Duration() float64 { return 0.2 }
func (stillSource) HasAudio() bool    { return false }
func (stillSource) Close() error      { return nil }

func (stillSource) Seek(ctx context.Context, instant float64) (image.Image, float64, error) {
	return image.NewRGBA(image.Rect(0, 0, 36, 64)), instant, nil
}

type fileRecorder struct{ path string }

func (r *fileRecorder) WriteFrame(*image.RGBA) error { return nil }
func (r *fileRecorder) AudioSink() io.WriteCloser    { return nil }
func (r *fileRecorder) Finish() error                { return nil }
func (r *fileRecorder) Abort()                       { os.Remove(r.path) }

func TestExportLifecycle(t *testing.T) {
	exp := export.NewDriver(logging.Discard(), nil, nil)
	exp.OpenSource = func(ctx context.Context, path string, w, h, fps int) (export.MediaSource, error) {
		return stillSource{}, nil
	}
	exp.Capturers = []export.Capturer{{
		Name: "test",
		Ext:  "mp4",
		Open: func(ctx context.Context, spec export.CaptureSpec) (export.Recorder, error) {
			return &fileRecorder{path: spec.Path}, os.WriteFile(spec.Path, []byte("x"), 0644)
		},
	}}
	ts := newTestServer(t, exp)
	// project duration wins over the source; keep the run short
	p := testProject()
	p.Duration = 0.2
	ts.cfg.Store.Set(p)

	if resp := ts.do(t, http.MethodPost, "/export", `{"aspect": "cinema"}`); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for an unknown aspect, got %d", resp.StatusCode)
	}

	resp := ts.do(t, http.MethodPost, "/export", "")
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}

	deadline := time.Now().Add(5 * time.Second)
	var st export.Status
	for {
		decode(t, ts.do(t, http.MethodGet, "/export", ""), &st)
		if st.State == export.StateIdle && st.Output != "" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("export did not finish, last status %+v", st)
		}
		time.Sleep(20 * time.Millisecond)
	}
	if _, err := os.Stat(st.Output); err != nil {
		t.Errorf("output missing: %v", err)
	}
	if !bytes.Contains([]byte(st.Output), []byte("talk_vertical_high_")) {
		t.Errorf("unexpected output name %s", st.Output)
	}

	if resp := ts.do(t, http.MethodDelete, "/export", ""); resp.StatusCode != http.StatusAccepted {
		t.Errorf("abort while idle should be accepted, got %d", resp.StatusCode)
	}
}
