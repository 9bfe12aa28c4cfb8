package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"restoassist/internal/gateway"
	"restoassist/internal/resource"
)

const assistantSystemPrompt = `Jesteś profesjonalnym asystentem restauracji.
Pomagasz klientom w:
- wyborze dań z menu
- składaniu zamówień
- odpowiadaniu na pytania o składniki i alergeny
- rekomendowaniu dań
- informowaniu o czasie oczekiwania
Bądź uprzejmy, profesjonalny i pomocny.`

const haikuSystemPrompt = "Jesteś poetą tworzącym haiku po polsku."

const (
	defaultHaikuTopic = "restauracja"
	haikuMaxTokens    = 100
	maxHaikuTopicLen  = 200
	chatTemperature   = 0.7
	chatTimeout       = 60 * time.Second
)

type assistantRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id"`
}

type assistantResponse struct {
	OK             bool   `json:"ok"`
	UserMessage    string `json:"user_message"`
	AssistantReply string `json:"assistant_reply"`
	Model          string `json:"model,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
	Persisted      bool   `json:"persisted"`
	Timestamp      string `json:"timestamp"`
}

func (s server) handleAssistant(w http.ResponseWriter, r *http.Request) {
	req, ok := readOptionalJSON[assistantRequest](w, r, maxRequestBodyBytes)
	if !ok {
		return
	}
	msg := strings.TrimSpace(req.Message)
	if msg == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "no message provided"})
		return
	}

	convID := uuid.Nil
	if v := strings.TrimSpace(req.ConversationID); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "invalid conversation_id"})
			return
		}
		convID = id
	}

	ctx, cancel := context.WithTimeout(r.Context(), chatTimeout)
	defer cancel()

	res := s.gw.Chat(ctx, gateway.ChatRequest{
		SystemPrompt:   assistantSystemPrompt,
		Message:        msg,
		ConversationID: convID,
		Persist:        true,
		MaxTokens:      s.chatMaxTokens,
		Temperature:    chatTemperature,
	})
	if res.Outcome != gateway.OutcomeOK {
		s.writeChatFailure(w, r, "assistant chat failed", res)
		return
	}

	out := assistantResponse{
		OK:             true,
		UserMessage:    msg,
		AssistantReply: strings.TrimSpace(res.Reply),
		Model:          res.Model,
		Persisted:      res.Persisted,
		Timestamp:      time.Now().UTC().Format(time.RFC3339),
	}
	if res.Persisted {
		out.ConversationID = res.ConversationID.String()
	}
	writeJSON(w, http.StatusOK, out)
}

type haikuRequest struct {
	Topic string `json:"topic"`
}

func (s server) handleHaiku(w http.ResponseWriter, r *http.Request) {
	req, ok := readOptionalJSON[haikuRequest](w, r, maxRequestBodyBytes)
	if !ok {
		return
	}
	topic := strings.TrimSpace(req.Topic)
	if topic == "" {
		topic = defaultHaikuTopic
	}
	if len([]rune(topic)) > maxHaikuTopicLen {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "topic too long"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), chatTimeout)
	defer cancel()

	res := s.gw.Chat(ctx, gateway.ChatRequest{
		SystemPrompt: haikuSystemPrompt,
		Message:      "Napisz krótkie haiku o: " + topic,
		MaxTokens:    haikuMaxTokens,
		Temperature:  chatTemperature,
	})
	if res.Outcome != gateway.OutcomeOK {
		s.writeChatFailure(w, r, "haiku chat failed", res)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":    true,
		"topic": topic,
		"haiku": strings.TrimSpace(res.Reply),
	})
}

// writeChatFailure keeps the deterministic unavailable reply in the body so
// clients can render it as-is.
func (s server) writeChatFailure(w http.ResponseWriter, r *http.Request, op string, res gateway.ChatResult) {
	if res.Outcome != gateway.OutcomeUnavailable {
		s.writeDependencyError(w, r, op, res.Err)
		return
	}
	logWarn(r.Context(), s.log, op, res.Err)
	writeJSON(w, http.StatusServiceUnavailable, map[string]any{
		"ok":              false,
		"error":           "assistant unavailable",
		"kind":            string(resource.KindOf(res.Err)),
		"assistant_reply": res.Reply,
	})
}
