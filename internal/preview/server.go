package preview

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/ivlev/talkreel/internal/compositor"
	"github.com/ivlev/talkreel/internal/config"
	"github.com/ivlev/talkreel/internal/export"
	"github.com/ivlev/talkreel/internal/model"
	"github.com/ivlev/talkreel/internal/system"
)

// frameSeekTimeout bounds the source seek of a single preview frame.
const frameSeekTimeout = 2 * time.Second

type ServerConfig struct {
	Logger     logrus.FieldLogger
	Registry   *Registry
	Store      *Store
	Compositor *compositor.Compositor
	Painter    *compositor.Painter
	Canvas     *compositor.Canvas
	Hub        *Hub
	// Source supplies decoded source frames for /frame.png; optional.
	Source export.MediaSource
	Assets compositor.Assets
	// Duration is used when the project does not carry one.
	Duration float64

	Export        *export.Driver
	ExportOptions export.Options
	Theme         model.ThemeConfig
	StartTime     time.Time
}

type HealthResponse struct {
	Status  string       `json:"status"`
	UptimeS int64        `json:"uptime_s"`
	Export  export.State `json:"export"`
	Clients int          `json:"clients"`
}

type PlaybackResponse struct {
	Driver   string  `json:"driver"`
	Playing  bool    `json:"playing"`
	Position float64 `json:"position"`
	Duration float64 `json:"duration"`
}

type SeekRequest struct {
	T float64 `json:"t"`
}

type ExportRequest struct {
	Aspect  string `json:"aspect,omitempty"`
	Quality string `json:"quality,omitempty"`
}

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))

	r.Get("/health", healthHandler(cfg))
	r.Get("/frame", frameHandler(cfg))
	r.Get("/frame.png", framePNGHandler(cfg))

	r.Post("/play", playHandler(cfg))
	r.Post("/pause", pauseHandler(cfg))
	r.Post("/seek", seekHandler(cfg))
	r.Post("/drivers/{id}/activate", activateHandler(cfg))
	r.Get("/ws", cfg.Hub.ServeWS)

	r.Post("/export", startExportHandler(cfg))
	r.Delete("/export", abortExportHandler(cfg))
	r.Get("/export", exportStatusHandler(cfg))

	return r
}

// FramePublisher describes the frame at each published position and pushes
// it to websocket subscribers.
func FramePublisher(cfg ServerConfig) func(instant float64) {
	return func(instant float64) {
		p := cfg.Store.Project()
		f := cfg.Compositor.Describe(p, instant, durationOf(cfg, p))
		cfg.Hub.Broadcast(Message{Type: "frame", Frame: &f})
	}
}

// ExportPublisher pushes export state changes to websocket subscribers.
func ExportPublisher(hub *Hub) func(export.Status) {
	return func(st export.Status) {
		hub.Broadcast(Message{Type: "export", Export: &st})
	}
}

func durationOf(cfg ServerConfig, p *model.Project) float64 {
	if p != nil && p.Duration > 0 {
		return p.Duration
	}
	if cfg.Duration > 0 {
		return cfg.Duration
	}
	if d := cfg.Registry.Active(); d != nil {
		return d.Duration()
	}
	return 0
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{
			Status:  "ok",
			UptimeS: int64(time.Since(cfg.StartTime).Seconds()),
			Export:  export.StateIdle,
			Clients: cfg.Hub.Count(),
		}
		if cfg.Export != nil {
			resp.Export = cfg.Export.Status().State
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

// instantParam reads ?t=, defaulting to the active driver's position.
func instantParam(cfg ServerConfig, r *http.Request) (float64, error) {
	if v := r.URL.Query().Get("t"); v != "" {
		t, err := strconv.ParseFloat(v, 64)
		if err != nil || t < 0 {
			return 0, errors.New("t must be a non-negative number of seconds")
		}
		return t, nil
	}
	if d := cfg.Registry.Active(); d != nil {
		return d.Position(), nil
	}
	return 0, nil
}

func frameHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, err := instantParam(cfg, r)
		if err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}
		p := cfg.Store.Project()
		WriteJSON(w, http.StatusOK, cfg.Compositor.Describe(p, t, durationOf(cfg, p)))
	}
}

func framePNGHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cfg.Canvas != nil && cfg.Canvas.Leased(canvasOwner) {
			WriteError(w, http.StatusConflict, "canvas is owned by a running export", "CANVAS_BUSY")
			return
		}
		t, err := instantParam(cfg, r)
		if err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}

		var src image.Image
		if cfg.Source != nil {
			ctx, cancel := context.WithTimeout(r.Context(), frameSeekTimeout)
			img, _, err := cfg.Source.Seek(ctx, t)
			cancel()
			if err != nil {
				cfg.Logger.WithError(err).WithField("instant", t).Warn("preview seek failed")
			} else {
				src = img
			}
		}

		p := cfg.Store.Project()
		img, err := cfg.Painter.Render(cfg.Compositor.Describe(p, t, durationOf(cfg, p)), src, cfg.Assets)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		defer system.PutImage(img)

		w.Header().Set("Content-Type", "image/png")
		if err := png.Encode(w, img); err != nil {
			cfg.Logger.WithError(err).Debug("write png")
		}
	}
}

func playbackState(d *Driver) PlaybackResponse {
	return PlaybackResponse{
		Driver:   d.ID,
		Playing:  d.Playing(),
		Position: d.Position(),
		Duration: d.Duration(),
	}
}

// withActive resolves the active driver or answers 503.
func withActive(cfg ServerConfig, fn func(w http.ResponseWriter, r *http.Request, d *Driver)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d := cfg.Registry.Active()
		if d == nil {
			WriteError(w, http.StatusServiceUnavailable, "no active preview driver", "NO_DRIVER")
			return
		}
		fn(w, r, d)
	}
}

func playHandler(cfg ServerConfig) http.HandlerFunc {
	return withActive(cfg, func(w http.ResponseWriter, r *http.Request, d *Driver) {
		d.Play()
		WriteJSON(w, http.StatusOK, playbackState(d))
	})
}

func pauseHandler(cfg ServerConfig) http.HandlerFunc {
	return withActive(cfg, func(w http.ResponseWriter, r *http.Request, d *Driver) {
		d.Pause()
		WriteJSON(w, http.StatusOK, playbackState(d))
	})
}

func seekHandler(cfg ServerConfig) http.HandlerFunc {
	return withActive(cfg, func(w http.ResponseWriter, r *http.Request, d *Driver) {
		var req SeekRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if req.T < 0 {
			WriteError(w, http.StatusBadRequest, "t must not be negative", "BAD_REQUEST")
			return
		}
		d.SetPosition(req.T, time.Now())
		WriteJSON(w, http.StatusOK, playbackState(d))
	})
}

func activateHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := cfg.Registry.Activate(id); err != nil {
			WriteError(w, http.StatusNotFound, err.Error(), "NOT_FOUND")
			return
		}
		WriteJSON(w, http.StatusOK, playbackState(cfg.Registry.Active()))
	}
}

func startExportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cfg.Export == nil {
			WriteError(w, http.StatusServiceUnavailable, "export is not configured", "EXPORT_UNAVAILABLE")
			return
		}

		var req ExportRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		opts := cfg.ExportOptions
		if req.Aspect != "" || req.Quality != "" {
			if req.Aspect != "" {
				opts.Aspect = req.Aspect
			}
			if req.Quality != "" {
				opts.Quality = req.Quality
			}
			res, kbps, err := config.Output(opts.Aspect, opts.Quality)
			if err != nil {
				WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
				return
			}
			opts.Width, opts.Height, opts.BitrateKbps = res.Width, res.Height, kbps
		}

		if cfg.Export.Status().State != export.StateIdle || (cfg.Canvas != nil && cfg.Canvas.Leased("export")) {
			WriteError(w, http.StatusConflict, export.ErrBusy.Error(), "EXPORT_BUSY")
			return
		}

		project := cfg.Store.Project().Clone()
		go func() {
			// the driver logs its own outcome
			cfg.Export.Run(context.Background(), project, cfg.Theme, opts)
		}()
		WriteJSON(w, http.StatusAccepted, cfg.Export.Status())
	}
}

func abortExportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cfg.Export == nil {
			WriteError(w, http.StatusServiceUnavailable, "export is not configured", "EXPORT_UNAVAILABLE")
			return
		}
		cfg.Export.Abort()
		WriteJSON(w, http.StatusAccepted, cfg.Export.Status())
	}
}

func exportStatusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cfg.Export == nil {
			WriteError(w, http.StatusServiceUnavailable, "export is not configured", "EXPORT_UNAVAILABLE")
			return
		}
		WriteJSON(w, http.StatusOK, cfg.Export.Status())
	}
}
