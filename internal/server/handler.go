package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/nvandessel/journeygraph/internal/journey"
	"github.com/nvandessel/journeygraph/internal/store"
)

// allowedMethods is sent with 405 responses.
const allowedMethods = "GET, PUT"

type graphHandler struct {
	repo         *journey.Repository
	logger       *zap.Logger
	maxBodyBytes int64
}

func (h *graphHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.get(w, r)
	case http.MethodPut:
		h.put(w, r)
	default:
		w.Header().Set("Allow", allowedMethods)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusMethodNotAllowed)
		io.WriteString(w, "Method Not Allowed")
	}
}

func (h *graphHandler) get(w http.ResponseWriter, r *http.Request) {
	g, err := h.repo.Read(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("ETag", journey.ETag(g))
	writeJSON(w, http.StatusOK, g)
}

func (h *graphHandler) put(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		h.logger.Debug("Rejected journey graph body", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Invalid payload"})
		return
	}

	nodes, edges, err := journey.DecodePayload(body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Invalid payload"})
		return
	}

	var g store.Graph
	if ifMatch := r.Header.Get("If-Match"); ifMatch != "" {
		g, err = h.repo.WriteIfMatch(r.Context(), ifMatch, nodes, edges)
	} else {
		g, err = h.repo.Write(r.Context(), nodes, edges)
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("ETag", journey.ETag(g))
	writeJSON(w, http.StatusOK, okBody{OK: true})
}

// fail maps repository errors to responses.
func (h *graphHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, journey.ErrPreconditionFailed) {
		writeJSON(w, http.StatusPreconditionFailed, errorBody{Error: "Precondition Failed"})
		return
	}
	h.logger.Error("Journey graph request failed",
		zap.String("method", r.Method),
		zap.String("request_id", requestIDFrom(r.Context())),
		zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, errorBody{Error: "Internal Server Error"})
}

type okBody struct {
	OK bool `json:"ok"`
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
