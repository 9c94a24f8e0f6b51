// Package net exposes the match engine over HTTP: the player API, the
// live log websocket, and optional static file hosting.
package net

import (
	"encoding/json"
	"errors"
	nethttp "net/http"
	"strconv"
	"strings"

	server "pipe-rush/server"
	"pipe-rush/server/internal/telemetry"
)

// HTTPHandlerConfig tunes the transport surface.
type HTTPHandlerConfig struct {
	// ServeDir, when set, is served at / with index.html as the index.
	ServeDir string

	// EnableLogs exposes the /logs websocket.
	EnableLogs bool

	Logger telemetry.Logger
}

type valueResponse struct {
	Value server.Score `json:"value"`
}

type applyModifierRequest struct {
	Type server.ModifierKind `json:"type"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewHTTPHandler builds the route table around the engine. All player
// routes authenticate with a bearer token; the token is the player's
// identity.
func NewHTTPHandler(engine *server.Engine, cfg HTTPHandlerConfig) nethttp.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.WrapLogger(nil)
	}

	mux := nethttp.NewServeMux()

	mux.HandleFunc("GET /api/pipe/{n}/value", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeUnauthorized(w)
			return
		}
		pipeID, ok := pipeID(w, r)
		if !ok {
			return
		}
		value, err := engine.InspectValue(token, pipeID)
		respond(w, valueResponse{Value: value}, err)
	})

	mux.HandleFunc("PUT /api/pipe/{n}", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeUnauthorized(w)
			return
		}
		pipeID, ok := pipeID(w, r)
		if !ok {
			return
		}
		value, err := engine.Collect(token, pipeID)
		respond(w, valueResponse{Value: value}, err)
	})

	mux.HandleFunc("POST /api/pipe/{n}/modifier", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeUnauthorized(w)
			return
		}
		pipeID, ok := pipeID(w, r)
		if !ok {
			return
		}
		defer r.Body.Close()
		var req applyModifierRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || !req.Type.Valid() {
			httpError(w, "invalid payload", nethttp.StatusBadRequest)
			return
		}
		err := engine.ApplyModifier(token, pipeID, req.Type)
		respond(w, struct{}{}, err)
	})

	if cfg.EnableLogs {
		mux.HandleFunc("GET /logs", newLogsHandler(engine.Log(), logger))
	}

	if cfg.ServeDir != "" {
		mux.Handle("/", nethttp.FileServer(nethttp.Dir(cfg.ServeDir)))
	}

	return mux
}

// bearerToken extracts the player token from the Authorization header.
func bearerToken(r *nethttp.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return "", false
	}
	return token, true
}

func pipeID(w nethttp.ResponseWriter, r *nethttp.Request) (int, bool) {
	id, err := strconv.Atoi(r.PathValue("n"))
	if err != nil || id < 0 {
		httpError(w, "invalid pipe id", nethttp.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// respond renders an operation result: the payload on success, or the
// error's wire code with its mapped status.
func respond(w nethttp.ResponseWriter, payload any, err error) {
	if err != nil {
		writeJSON(w, errorStatus(err), errorResponse{Error: errorBody(err)})
		return
	}
	writeJSON(w, nethttp.StatusOK, payload)
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, server.ErrPlayerUnknown):
		return nethttp.StatusUnauthorized
	case errors.Is(err, server.ErrPlayerBusy):
		return nethttp.StatusForbidden
	case errors.Is(err, server.ErrPipeNotFound):
		return nethttp.StatusNotFound
	case errors.Is(err, server.ErrInsufficientScore), errors.Is(err, server.ErrModifierAlreadyApplied):
		return nethttp.StatusUnprocessableEntity
	}
	return nethttp.StatusInternalServerError
}

func errorBody(err error) string {
	if code := server.ErrorCode(err); code != "" {
		return code
	}
	return "Internal"
}

func writeUnauthorized(w nethttp.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	writeJSON(w, nethttp.StatusUnauthorized, errorResponse{Error: "MissingToken"})
}

func writeJSON(w nethttp.ResponseWriter, status int, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		httpError(w, "failed to encode", nethttp.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

func httpError(w nethttp.ResponseWriter, msg string, code int) {
	nethttp.Error(w, msg, code)
}
