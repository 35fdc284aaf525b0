// Package fiscalis wires the router, structural lookup, hybrid
// retriever, fallback orchestrator and LLM bridge into the single
// chat operation exposed over HTTP (§2, §4.G-§4.I).
package fiscalis

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/brunobiangulo/fiscalis/llm"
	"github.com/brunobiangulo/fiscalis/retrieval"
	"github.com/brunobiangulo/fiscalis/router"
	"github.com/brunobiangulo/fiscalis/store"
)

// defaultEjercicio matches the original's default tax year (the
// original's `QueryRequest.ejercicio` default).
const defaultEjercicio = 2025

// Service is the engine behind POST /chat: it owns the store, the
// embedding/chat providers and the fallback orchestrator, and exposes
// the single Chat operation the HTTP handler calls.
type Service struct {
	store         *store.Store
	orchestrator  *retrieval.Orchestrator
	bridge        *llm.Bridge
	embedProvider llm.Provider
}

// New builds a Service from cfg: opens the SQLite store, constructs the
// chat and embedding providers, and wires the fallback orchestrator and
// streaming bridge around them. Per §7 category 1, an unreachable store
// or an unconfigured provider is a fatal configuration error — the
// caller (cmd/server/main.go) is expected to exit the process on a
// non-nil error here, not retry.
func New(cfg Config) (*Service, error) {
	if cfg.Chat.APIKey == "" || cfg.Embedding.APIKey == "" {
		return nil, fmt.Errorf("%w: missing chat or embedding api key", ErrConfigInvalid)
	}

	st, err := store.New(cfg.DBPath, cfg.EmbeddingDim)
	if err != nil {
		return nil, fmt.Errorf("%w: opening store: %v", ErrConfigInvalid, err)
	}

	chatProvider, err := llm.NewProvider(llm.Config{
		Provider: cfg.Chat.Provider, Model: cfg.Chat.Model,
		BaseURL: cfg.Chat.BaseURL, APIKey: cfg.Chat.APIKey,
	})
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("%w: chat provider: %v", ErrConfigInvalid, err)
	}
	embedProvider, err := llm.NewProvider(llm.Config{
		Provider: cfg.Embedding.Provider, Model: cfg.Embedding.Model,
		BaseURL: cfg.Embedding.BaseURL, APIKey: cfg.Embedding.APIKey,
	})
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("%w: embedding provider: %v", ErrConfigInvalid, err)
	}

	return &Service{
		store:         st,
		orchestrator:  retrieval.New(st, cfg.TopKDefault),
		bridge:        llm.NewBridge(chatProvider, cfg.Chat.Model),
		embedProvider: embedProvider,
	}, nil
}

// Close releases the underlying store.
func (s *Service) Close() error {
	return s.store.Close()
}

// ChatRequest is the input to Chat, mirroring the POST /chat JSON body
// named in §6.
type ChatRequest struct {
	Question  string
	Regimen   string
	Ejercicio int
	Trace     bool
	History   []llm.Message
}

// DebugInfo is populated on ChatResult only when ChatRequest.Trace is
// set (§6's `debug?` field — no original_source file defines this key,
// see DESIGN.md Open Questions).
type DebugInfo struct {
	Route         string `json:"route"`
	RequestedYear int    `json:"requested_year"`
	UsedYear      int    `json:"used_year"`
	LiteralBypass bool   `json:"literal_bypass"`
	ElapsedMS     int64  `json:"elapsed_ms"`
}

// ChatResult is the output of Chat. Answer and Response carry the same
// text under two keys — the original returns a single `response` key,
// spec.md §6 names both `answer` and `response`; both are populated so
// either naming convention a caller expects is satisfied.
type ChatResult struct {
	Answer   string     `json:"answer"`
	Response string     `json:"response"`
	Debug    *DebugInfo `json:"debug,omitempty"`
}

// Chat implements the single externally-visible RAG operation: expand
// the query (§4.D), run the fallback orchestrator (§4.G), and either
// quote the evidence directly (§4.I Path B) or stream a grounded answer
// from the chat LLM (§4.I Path A). Per §7 category 3, an empty
// evidence set is not an error — the LLM still runs, and generate puts a
// placeholder that records the absence of evidence in the evidence block.
func (s *Service) Chat(ctx context.Context, req ChatRequest) (ChatResult, error) {
	if strings.TrimSpace(req.Question) == "" {
		return ChatResult{}, ErrQuestionRequired
	}

	start := time.Now()
	ejercicio := req.Ejercicio
	if ejercicio == 0 {
		ejercicio = defaultEjercicio
	}

	expansion := router.ExpandQuery(req.Question)

	vecs, err := s.embedProvider.Embed(ctx, []string{expansion.ExpandedQuery})
	if err != nil {
		return ChatResult{}, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	var queryVec []float32
	if len(vecs) > 0 {
		queryVec = vecs[0]
	}

	result, err := s.orchestrator.Run(ctx, req.Question, ejercicio, queryVec, expansion.Keywords)
	if err != nil {
		return ChatResult{}, err
	}

	route := "hybrid"
	var answer string

	switch {
	case len(result.Evidence) == 0:
		route = "empty"
		answer, err = s.generate(ctx, result, req, ejercicio)
		if err != nil {
			return ChatResult{}, err
		}
	case result.LiteralBypass:
		route = "literal-bypass"
		answer = llm.LiteralQuote(result.Evidence)
		if strings.TrimSpace(answer) == "" {
			answer = "No se encontró un fragmento específico para tu consulta."
		}
	default:
		answer, err = s.generate(ctx, result, req, ejercicio)
		if err != nil {
			return ChatResult{}, err
		}
	}

	elapsed := time.Since(start)

	// Audit log (§10.2): best-effort, never fails the request.
	if logErr := s.store.LogQuery(ctx, req.Question, ejercicio, result.UsedYear, route,
		len(result.Evidence), len(answer), elapsed.Milliseconds()); logErr != nil {
		slog.Error("logging query", "error", logErr)
	}

	out := ChatResult{Answer: answer, Response: answer}
	if req.Trace {
		out.Debug = &DebugInfo{
			Route:         route,
			RequestedYear: ejercicio,
			UsedYear:      result.UsedYear,
			LiteralBypass: result.LiteralBypass,
			ElapsedMS:     elapsed.Milliseconds(),
		}
	}
	return out, nil
}

// generate runs §4.I Path A: it assembles the evidence into a system
// prompt, attaches history, streams the chat completion and
// concatenates the deltas. Closing ctx (a client disconnect at the HTTP
// layer) stops the bridge from reading further and closes the upstream
// connection promptly (§5).
func (s *Service) generate(ctx context.Context, result retrieval.Result, req ChatRequest, ejercicio int) (string, error) {
	evidence := retrieval.AssembleEvidence(result.Evidence, 0)
	if evidence == "" {
		evidence = "(No se recuperó evidencia para esta consulta.)"
	}
	systemPrompt := retrieval.BuildSystemPrompt(evidence)
	userPrompt := retrieval.BuildUserPrompt(req.Question, ejercicio, result.UsedYear, req.Regimen)

	deltas, err := s.bridge.Stream(ctx, systemPrompt, userPrompt, req.History)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrLLMUnavailable, err)
	}

	var b strings.Builder
	for d := range deltas {
		if d.Err != nil {
			return "", fmt.Errorf("%w: %v", ErrLLMUnavailable, d.Err)
		}
		b.WriteString(d.Content)
	}

	answer := b.String()
	if strings.TrimSpace(answer) == "" {
		answer = "No fue posible generar una respuesta con la evidencia disponible."
	}
	return answer, nil
}
