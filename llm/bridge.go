package llm

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/brunobiangulo/fiscalis/store"
)

// chatTemperature is fixed per §4.I Path A; the system/user prompts carry
// all the steering this bridge needs, so the call is never made hotter.
const chatTemperature = 0.2

// maxHistoryTurns bounds how much prior conversation is attached to a
// streaming call (§4.I Path A: "attach the last 4 history turns").
const maxHistoryTurns = 4

// Bridge implements the LLM Streaming Bridge (§4.I): it turns a system
// prompt, user prompt and optional history into either a streamed answer
// (Path A) or, for literal-citation lookups, a direct quotation of the
// retrieved evidence with no model call at all (Path B).
type Bridge struct {
	provider Provider
	model    string
}

// NewBridge builds a Bridge around provider, using model for every chat call.
func NewBridge(provider Provider, model string) *Bridge {
	return &Bridge{provider: provider, model: model}
}

// Stream implements Path A: attaches up to the last maxHistoryTurns
// messages of history, calls the chat-completion API with
// temperature=0.2 and stream=true, and relays text deltas as they
// arrive. Closing ctx stops the bridge from making further progress and
// causes the upstream connection to be closed promptly.
func (b *Bridge) Stream(ctx context.Context, systemPrompt, userPrompt string, history []Message) (<-chan StreamDelta, error) {
	messages := make([]Message, 0, len(history)+2)
	messages = append(messages, Message{Role: "system", Content: systemPrompt})
	messages = append(messages, truncateHistory(history)...)
	messages = append(messages, Message{Role: "user", Content: userPrompt})

	return b.provider.ChatStream(ctx, ChatRequest{
		Model:       b.model,
		Messages:    messages,
		Temperature: chatTemperature,
	})
}

// truncateHistory keeps only the most recent maxHistoryTurns messages.
func truncateHistory(history []Message) []Message {
	if len(history) <= maxHistoryTurns {
		return history
	}
	return history[len(history)-maxHistoryTurns:]
}

// LiteralQuote implements Path B: when the orchestrator flagged
// literal-citation intent on a rule or article lookup, the response is
// built directly from the retrieved evidence with no LLM call.
//
// The chunk(s) with the highest page_start are preferred (a rule's body
// is typically further into the document than its index entry), then
// sorted by (page_start, page_end, chunk_id), concatenated with blank
// lines between them, and every line is prefixed with "> " so the result
// renders as a markdown blockquote.
func LiteralQuote(evidence []store.RetrievalResult) string {
	if len(evidence) == 0 {
		return ""
	}

	maxPage := evidence[0].PageStart
	for _, r := range evidence {
		if r.PageStart > maxPage {
			maxPage = r.PageStart
		}
	}

	var picked []store.RetrievalResult
	for _, r := range evidence {
		if r.PageStart == maxPage {
			picked = append(picked, r)
		}
	}

	sort.Slice(picked, func(i, j int) bool {
		if picked[i].PageStart != picked[j].PageStart {
			return picked[i].PageStart < picked[j].PageStart
		}
		if picked[i].PageEnd != picked[j].PageEnd {
			return picked[i].PageEnd < picked[j].PageEnd
		}
		return picked[i].ChunkID < picked[j].ChunkID
	})

	texts := make([]string, len(picked))
	for i, r := range picked {
		texts[i] = r.Text
	}
	body := strings.Join(texts, "\n\n")

	var b strings.Builder
	for _, line := range strings.Split(body, "\n") {
		fmt.Fprintf(&b, "> %s\n", line)
	}
	return b.String()
}
