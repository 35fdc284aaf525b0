package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/brunobiangulo/fiscalis"
	"github.com/brunobiangulo/fiscalis/llm"
)

type handler struct {
	service   *fiscalis.Service
	staticDir string
}

func newHandler(svc *fiscalis.Service, staticDir string) *handler {
	return &handler{service: svc, staticDir: staticDir}
}

// POST /chat
func (h *handler) handleChat(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	var req struct {
		Question  string     `json:"question"`
		Regimen   string     `json:"regimen,omitempty"`
		Ejercicio int        `json:"ejercicio,omitempty"`
		Trace     bool       `json:"trace,omitempty"`
		History   []chatTurn `json:"history,omitempty"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	result, err := h.service.Chat(ctx, fiscalis.ChatRequest{
		Question:  req.Question,
		Regimen:   req.Regimen,
		Ejercicio: req.Ejercicio,
		Trace:     req.Trace,
		History:   toLLMHistory(req.History),
	})
	if err != nil {
		slog.Error("chat error", "question", req.Question, "error", err)
		writeError(w, http.StatusInternalServerError, "Error en el motor RAG: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// chatTurn mirrors the POST /chat `history` entries (§6).
type chatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func toLLMHistory(turns []chatTurn) []llm.Message {
	if len(turns) == 0 {
		return nil
	}
	out := make([]llm.Message, len(turns))
	for i, t := range turns {
		out[i] = llm.Message{Role: t.Role, Content: t.Content}
	}
	return out
}

// GET /api/health
func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "Online",
		"mode":   "hybrid-rag",
		"db":     "sqlite+sqlite-vec",
	})
}

// GET /
func (h *handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	path := h.staticDir + "/index.html"
	if _, err := os.Stat(path); err != nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "Online"})
		return
	}
	http.ServeFile(w, r, path)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": fmt.Sprintf("%s", msg)})
}
