package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"servopwm/internal/board"
	"servopwm/internal/config"
	"servopwm/internal/fancontrol"
	"servopwm/internal/pca9685"
)

// Controller is the board surface exposed over HTTP. *board.Board implements
// it.
type Controller interface {
	Snapshot() (board.Snapshot, error)
	SetChannel(name string, duty, phase float64) error
	ChannelOff(name string) error
	SetFrequency(ctx context.Context, hz int) error
	Sleep() error
	Wake() error
	SetModes(m board.ModeChange) error
	ResetModes() error
	OutputEnable() error
	OutputDisable() error
}

// FanStatus optionally reports the fan controller state in /api/status.
type FanStatus interface {
	Snapshot() fancontrol.Snapshot
}

type StatusResponse struct {
	Service string               `json:"service"`
	NowUTC  string               `json:"now_utc"`
	Board   board.Snapshot       `json:"board"`
	Fan     *fancontrol.Snapshot `json:"fan,omitempty"`
}

type ChannelRequest struct {
	Duty  *float64 `json:"duty"`
	Phase *float64 `json:"phase"`
}

type FrequencyRequest struct {
	Hz int `json:"hz"`
}

type OutputsRequest struct {
	Enabled *bool `json:"enabled"`
}

// ModeRequest carries the Mode2 fields to change; empty fields are left
// alone. Values accept the same spellings as the config file.
type ModeRequest struct {
	OutputPolarity string `json:"output_polarity"`
	OutputDriver   string `json:"output_driver"`
	OutNE          string `json:"outne"`
	OutputsChange  string `json:"outputs_change"`
}

// frequencyTimeout bounds the oscillator settle wait of a frequency change.
const frequencyTimeout = 2 * time.Second

func Handler(ctl Controller, fan FanStatus, logs *LogBuffer) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		if !allow(w, r, http.MethodGet) {
			return
		}
		snap, err := ctl.Snapshot()
		if err != nil {
			writeError(w, err)
			return
		}
		resp := StatusResponse{
			Service: "servopwm",
			NowUTC:  time.Now().UTC().Format(time.RFC3339Nano),
			Board:   snap,
		}
		if fan != nil {
			fs := fan.Snapshot()
			resp.Fan = &fs
		}
		writeJSON(w, resp)
	})

	mux.HandleFunc("/api/channels/", func(w http.ResponseWriter, r *http.Request) {
		if !allow(w, r, http.MethodPost) {
			return
		}
		rest := strings.TrimPrefix(r.URL.Path, "/api/channels/")
		name, action, _ := strings.Cut(rest, "/")
		if name == "" {
			http.NotFound(w, r)
			return
		}
		switch action {
		case "off":
			if err := ctl.ChannelOff(name); err != nil {
				writeError(w, err)
				return
			}
		case "":
			var req ChannelRequest
			if !decodeBody(w, r, &req) {
				return
			}
			if req.Duty == nil || math.IsNaN(*req.Duty) || *req.Duty < 0 || *req.Duty > 100 {
				http.Error(w, "duty must be a number in [0,100]", http.StatusBadRequest)
				return
			}
			phase := pca9685.AutoPhase
			if req.Phase != nil {
				if *req.Phase > 100 {
					http.Error(w, "phase must be <= 100 (negative selects auto)", http.StatusBadRequest)
					return
				}
				phase = *req.Phase
			}
			if err := ctl.SetChannel(name, *req.Duty, phase); err != nil {
				writeError(w, err)
				return
			}
		default:
			http.NotFound(w, r)
			return
		}
		writeOK(w)
	})

	mux.HandleFunc("/api/frequency", func(w http.ResponseWriter, r *http.Request) {
		if !allow(w, r, http.MethodPost) {
			return
		}
		var req FrequencyRequest
		if !decodeBody(w, r, &req) {
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), frequencyTimeout)
		defer cancel()
		if err := ctl.SetFrequency(ctx, req.Hz); err != nil {
			writeError(w, err)
			return
		}
		writeOK(w)
	})

	mux.HandleFunc("/api/sleep", action(ctl.Sleep))
	mux.HandleFunc("/api/wake", action(ctl.Wake))
	mux.HandleFunc("/api/defaults", action(ctl.ResetModes))

	mux.HandleFunc("/api/outputs", func(w http.ResponseWriter, r *http.Request) {
		if !allow(w, r, http.MethodPost) {
			return
		}
		var req OutputsRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.Enabled == nil {
			http.Error(w, "enabled is required", http.StatusBadRequest)
			return
		}
		var err error
		if *req.Enabled {
			err = ctl.OutputEnable()
		} else {
			err = ctl.OutputDisable()
		}
		if err != nil {
			writeError(w, err)
			return
		}
		writeOK(w)
	})

	mux.HandleFunc("/api/mode", func(w http.ResponseWriter, r *http.Request) {
		if !allow(w, r, http.MethodPost) {
			return
		}
		var req ModeRequest
		if !decodeBody(w, r, &req) {
			return
		}
		m, err := req.change()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := ctl.SetModes(m); err != nil {
			writeError(w, err)
			return
		}
		writeOK(w)
	})

	if logs != nil {
		mux.Handle("/api/logs", logs.Handler())
	}
	mux.Handle("/api/about", AboutHandler())

	return mux
}

func (req ModeRequest) change() (board.ModeChange, error) {
	var m board.ModeChange
	if s := strings.TrimSpace(req.OutputPolarity); s != "" {
		v, err := config.ParseOutputPolarity(s)
		if err != nil {
			return m, err
		}
		m.Polarity = &v
	}
	if s := strings.TrimSpace(req.OutputDriver); s != "" {
		v, err := config.ParseOutputDriver(s)
		if err != nil {
			return m, err
		}
		m.Driver = &v
	}
	if s := strings.TrimSpace(req.OutNE); s != "" {
		v, err := config.ParseOutNEMode(s)
		if err != nil {
			return m, err
		}
		m.OutNE = &v
	}
	if s := strings.TrimSpace(req.OutputsChange); s != "" {
		v, err := config.ParseOutputsChangeMode(s)
		if err != nil {
			return m, err
		}
		m.OutputsChange = &v
	}
	if m == (board.ModeChange{}) {
		return m, errors.New("no mode field given")
	}
	return m, nil
}

func action(fn func() error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !allow(w, r, http.MethodPost) {
			return
		}
		if err := fn(); err != nil {
			writeError(w, err)
			return
		}
		writeOK(w)
	}
}

func allow(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Allow", method)
	http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	return false
}

// decodeBody strictly decodes a JSON object of at most 64 KiB. An empty body
// decodes as {}.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	body, err := io.ReadAll(io.LimitReader(r.Body, 64<<10))
	if err != nil {
		http.Error(w, "read body failed", http.StatusBadRequest)
		return false
	}
	if len(bytes.TrimSpace(body)) == 0 {
		body = []byte("{}")
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		http.Error(w, fmt.Sprintf("invalid json: %v", err), http.StatusBadRequest)
		return false
	}
	return true
}

// statusFor maps driver errors to HTTP status codes: rejected requests are the
// caller's fault, bus failures are the board's.
func statusFor(err error) int {
	var cfgErr *pca9685.ConfigError
	switch {
	case errors.As(err, &cfgErr):
		return http.StatusBadRequest
	case errors.Is(err, board.ErrUnknownChannel), errors.Is(err, board.ErrNoOutputEnable):
		return http.StatusNotFound
	case errors.Is(err, pca9685.ErrClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, pca9685.ErrSettleInterrupted):
		return http.StatusGatewayTimeout
	case errors.Is(err, pca9685.ErrTransport):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), statusFor(err))
}

func writeOK(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte("{\"ok\":true}\n"))
}

func writeJSON(w http.ResponseWriter, v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		http.Error(w, "marshal failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(b)
	_, _ = w.Write([]byte("\n"))
}

func Serve(ctx context.Context, listenAddr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       30 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
