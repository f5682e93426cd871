package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"net/http"
	"time"

	"github.com/cjeanneret/GoWinch/internal/debug"
	"github.com/cjeanneret/GoWinch/internal/hw/motor"
	"github.com/cjeanneret/GoWinch/internal/logic/winch"
)

const maxBodyBytes = 1 << 20

// Winch is the command surface the handlers drive.
type Winch interface {
	GoTo(deg float64) error
	GoToLength(mm float64) error
	EnableSeek() error
	DisableSeek()
	Drive(gear string) error
	Stop() error
	ResetAngle(deg float64) error
	Status() winch.Status
}

// TargetRequest is the body of POST /target. Exactly one field is set.
type TargetRequest struct {
	AngleDeg *float64 `json:"angle_deg,omitempty"`
	LengthMm *float64 `json:"length_mm,omitempty"`
}

type SeekRequest struct {
	Enabled bool `json:"enabled"`
}

type GearRequest struct {
	Gear string `json:"gear"`
}

type ResetRequest struct {
	AngleDeg float64 `json:"angle_deg"`
}

// Info describes the winch to the control page.
type Info struct {
	Name          string   `json:"name"`
	ResolutionDeg float64  `json:"resolution_deg"`
	DeadbandDeg   float64  `json:"deadband_deg"`
	HasDrum       bool     `json:"has_drum"`
	Gears         []string `json:"gears"`
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	Broadcaster *StatusBroadcaster
	Winch       Winch
	Info        Info
	staticFS    fs.FS
}

func NewHandlers(broadcaster *StatusBroadcaster, w Winch, info Info, staticFS fs.FS) *Handlers {
	return &Handlers{
		Broadcaster: broadcaster,
		Winch:       w,
		Info:        info,
		staticFS:    staticFS,
	}
}

// ValidateTarget checks that exactly one finite target is given.
func ValidateTarget(t TargetRequest) error {
	switch {
	case t.AngleDeg == nil && t.LengthMm == nil:
		return errors.New("one of angle_deg or length_mm is required")
	case t.AngleDeg != nil && t.LengthMm != nil:
		return errors.New("angle_deg and length_mm are mutually exclusive")
	case t.AngleDeg != nil && !isFinite(*t.AngleDeg):
		return errors.New("angle_deg must be a finite number")
	case t.LengthMm != nil && !isFinite(*t.LengthMm):
		return errors.New("length_mm must be a finite number")
	}
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// ServeIndex serves the main HTML page (root path only).
func (h *Handlers) ServeIndex(w http.ResponseWriter, r *http.Request) {
	data, err := fs.ReadFile(h.staticFS, "index.html")
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(data)
}

func (h *Handlers) HandleInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Info)
}

func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Winch.Status())
}

// HandleTarget handles POST /target.
func (h *Handlers) HandleTarget(w http.ResponseWriter, r *http.Request) {
	var req TargetRequest
	if !decode(w, r, &req) {
		return
	}
	if err := ValidateTarget(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.AngleDeg != nil {
		h.run(w, "go to", func() error { return h.Winch.GoTo(*req.AngleDeg) })
		return
	}
	h.run(w, "go to length", func() error { return h.Winch.GoToLength(*req.LengthMm) })
}

func (h *Handlers) HandleSeek(w http.ResponseWriter, r *http.Request) {
	var req SeekRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Enabled {
		h.run(w, "enable seek", h.Winch.EnableSeek)
		return
	}
	h.run(w, "disable seek", func() error { h.Winch.DisableSeek(); return nil })
}

func (h *Handlers) HandleGear(w http.ResponseWriter, r *http.Request) {
	var req GearRequest
	if !decode(w, r, &req) {
		return
	}
	h.run(w, "gear", func() error { return h.Winch.Drive(req.Gear) })
}

// HandleStop handles POST /stop. It takes no body.
func (h *Handlers) HandleStop(w http.ResponseWriter, r *http.Request) {
	h.run(w, "stop", h.Winch.Stop)
}

func (h *Handlers) HandleReset(w http.ResponseWriter, r *http.Request) {
	var req ResetRequest
	if !decode(w, r, &req) {
		return
	}
	h.run(w, "reset", func() error { return h.Winch.ResetAngle(req.AngleDeg) })
}

// run executes a command and answers with the resulting status, which is
// also pushed to SSE clients.
func (h *Handlers) run(w http.ResponseWriter, what string, cmd func() error) {
	if err := cmd(); err != nil {
		debug.Error(fmt.Errorf("web %s: %w", what, err))
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	st := h.Winch.Status()
	h.Broadcaster.BroadcastState(st)
	writeJSON(w, http.StatusOK, st)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, winch.ErrInvalidArgs), errors.Is(err, motor.ErrUnknownGear):
		return http.StatusBadRequest
	case errors.Is(err, winch.ErrNoDrum):
		return http.StatusConflict
	case errors.Is(err, motor.ErrClosed):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// HandleStatusStream handles GET /status/stream for SSE.
func (h *Handlers) HandleStatusStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // nginx

	ch, unsub := h.Broadcaster.Subscribe()
	defer unsub()

	w.Write([]byte(": connected\n\n"))
	flusher.Flush()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			w.Write([]byte("data: " + msg + "\n\n"))
			flusher.Flush()

		case <-ticker.C:
			w.Write([]byte(": heartbeat\n\n"))
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}
