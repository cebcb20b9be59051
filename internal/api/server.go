package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"

	"pdf-rag/internal/config"
	"pdf-rag/internal/models"
	"pdf-rag/internal/rag"
)

const uploadMessage = "PDF processed and indexed."

// Pipeline is the part of rag.RAG the HTTP surface calls.
type Pipeline interface {
	Ingest(ctx context.Context, filename string, data []byte) (models.IngestResult, error)
	Ask(ctx context.Context, question, memory string) (models.AskResponse, error)
	Summarize(ctx context.Context, words int) (string, error)
	Chunks(ctx context.Context) ([]string, error)
}

type Server struct {
	pipeline       Pipeline
	maxUploadBytes int64
}

func NewServer(pipeline Pipeline, cfg *config.ServerConfig) *Server {
	maxMB := int64(32)
	if cfg != nil && cfg.MaxUploadMB > 0 {
		maxMB = cfg.MaxUploadMB
	}
	return &Server{pipeline: pipeline, maxUploadBytes: maxMB << 20}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/upload", s.handleUpload)
	mux.HandleFunc("/ask", s.handleAsk)
	mux.HandleFunc("/summarize", s.handleSummarize)
	mux.HandleFunc("/chunks", s.handleChunks)

	var h http.Handler = withCORS(withRecovery(mux))
	h = hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Stringer("url", r.URL).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("")
	})(h)
	h = hlog.RequestIDHandler("req_id", "X-Request-Id")(h)
	return hlog.NewHandler(log.Logger)(h)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		s.fail(w, r, "upload", rag.InvalidInput("parse multipart: %v", err))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.fail(w, r, "upload", rag.InvalidInput("file is required"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.fail(w, r, "upload", fmt.Errorf("read upload: %w", err))
		return
	}

	res, err := s.pipeline.Ingest(r.Context(), header.Filename, data)
	if err != nil {
		s.fail(w, r, "upload", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": uploadMessage, "chunks": res.Chunks})
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	// FormValue handles both urlencoded and multipart bodies
	question := r.FormValue("question")
	memory := r.FormValue("memory")

	resp, err := s.pipeline.Ask(r.Context(), question, memory)
	if err != nil {
		s.fail(w, r, "ask", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSummarize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	words := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("words")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.fail(w, r, "summarize", rag.InvalidInput("words must be a positive integer, got %q", raw))
			return
		}
		words = n
	}

	summary, err := s.pipeline.Summarize(r.Context(), words)
	if err != nil {
		s.fail(w, r, "summarize", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"summary": summary})
}

func (s *Server) handleChunks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	chunks, err := s.pipeline.Chunks(r.Context())
	if err != nil {
		s.fail(w, r, "chunks", err)
		return
	}
	if chunks == nil {
		chunks = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"chunks": chunks})
}

// fail logs err in full and writes the mapped status and message.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, flow string, err error) {
	kind := rag.KindOf(err)
	status := statusFor(kind)

	ev := hlog.FromRequest(r).Error()
	if status < http.StatusInternalServerError {
		ev = hlog.FromRequest(r).Warn()
	}
	ev.Err(err).Str("flow", flow).Str("kind", kind.String()).Msg("Request failed")

	msg := err.Error()
	if kind == rag.KindNoDocument {
		msg = models.NoDocument
	}
	writeErr(w, status, msg)
}

func statusFor(kind rag.Kind) int {
	switch kind {
	case rag.KindNoDocument, rag.KindInvalidInput:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{"error": msg})
}

// withRecovery answers a panicking handler with a 500 instead of a dropped connection.
func withRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				hlog.FromRequest(r).Error().Interface("panic", rec).Str("path", r.URL.Path).Msg("Handler panicked")
				writeErr(w, http.StatusInternalServerError, fmt.Sprintf("internal error: %v", rec))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "*")
		if reqHeaders := r.Header.Get("Access-Control-Request-Headers"); reqHeaders != "" {
			w.Header().Set("Access-Control-Allow-Headers", reqHeaders)
		} else {
			w.Header().Set("Access-Control-Allow-Headers", "*")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
