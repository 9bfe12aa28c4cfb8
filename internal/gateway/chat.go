package gateway

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"restoassist/internal/ai"
	"restoassist/internal/db"
	"restoassist/internal/resource"
	"restoassist/internal/store"
)

// UnavailableReply is the fixed answer returned while the AI client is disabled.
const UnavailableReply = "The assistant is currently unavailable. Please try again later or ask a member of staff."

type Outcome string

const (
	OutcomeOK              Outcome = "ok"
	OutcomeUnavailable     Outcome = "unavailable"
	OutcomeUpstreamFailure Outcome = "upstream_failure"
	OutcomeMalformed       Outcome = "malformed_reply"
)

type ChatRequest struct {
	SystemPrompt string
	Message      string

	// ConversationID continues a stored conversation. uuid.Nil starts a new one
	// when Persist is set.
	ConversationID uuid.UUID
	Persist        bool

	MaxTokens   int
	Temperature float32
}

type ChatResult struct {
	Outcome Outcome
	Reply   string
	Model   string
	Usage   ai.Usage

	// ConversationID is set only when the turns were stored.
	ConversationID uuid.UUID
	Persisted      bool

	// Err is the typed cause for every outcome other than OutcomeOK.
	Err error
}

// Chat sends one user message, with stored history when available, and
// classifies the outcome. It never fails the whole request: a disabled client
// yields OutcomeUnavailable with UnavailableReply, and persistence problems
// only clear Persisted.
func (g *Gateway) Chat(ctx context.Context, req ChatRequest) ChatResult {
	if st := g.client.State(); st != resource.StateReady {
		return ChatResult{
			Outcome: OutcomeUnavailable,
			Reply:   UnavailableReply,
			Err:     resource.ForState("gateway.chat", st, nil),
		}
	}

	persist := req.Persist && g.DatabaseReady()
	convID := req.ConversationID

	messages := make([]ai.Message, 0, g.historyTurns+2)
	if req.SystemPrompt != "" {
		messages = append(messages, ai.Message{Role: ai.RoleSystem, Content: req.SystemPrompt})
	}
	if persist && convID != uuid.Nil {
		messages = append(messages, g.loadHistory(ctx, convID)...)
	}
	messages = append(messages, ai.Message{Role: ai.RoleUser, Content: req.Message})

	reply, err := g.client.Invoke(ctx, messages, ai.InvokeOptions{
		MaxTokens:       req.MaxTokens,
		Temperature:     req.Temperature,
		HistoryTurns:    g.historyTurns + 1,
		MaxMessageChars: g.maxMessageChars,
	})
	if err != nil {
		out := ChatResult{Outcome: OutcomeUpstreamFailure, Err: err}
		switch resource.KindOf(err) {
		case resource.KindMalformedReply:
			out.Outcome = OutcomeMalformed
		case resource.KindUnconfigured, resource.KindUnavailable:
			out.Outcome = OutcomeUnavailable
			out.Reply = UnavailableReply
		}
		return out
	}

	res := ChatResult{
		Outcome: OutcomeOK,
		Reply:   reply.Content,
		Model:   reply.Model,
		Usage:   reply.Usage,
	}
	if !persist {
		return res
	}

	if convID == uuid.Nil {
		convID = uuid.New()
	}
	err = g.WithConnection(ctx, func(ctx context.Context, q db.Querier) error {
		return store.AppendTurns(ctx, q, convID,
			store.Turn{Role: ai.RoleUser, Content: req.Message, Tokens: reply.Usage.PromptTokens},
			store.Turn{Role: ai.RoleAssistant, Content: reply.Content, Tokens: reply.Usage.CompletionTokens},
		)
	})
	if err != nil {
		g.logPersistFailure(err, "gateway: storing conversation failed")
		return res
	}
	res.ConversationID = convID
	res.Persisted = true
	return res
}

func (g *Gateway) loadHistory(ctx context.Context, convID uuid.UUID) []ai.Message {
	var turns []store.Turn
	err := g.WithConnection(ctx, func(ctx context.Context, q db.Querier) error {
		var err error
		turns, err = store.LoadHistory(ctx, q, convID, g.historyTurns)
		return err
	})
	if err != nil {
		g.logPersistFailure(err, "gateway: loading conversation history failed")
		return nil
	}
	out := make([]ai.Message, 0, len(turns))
	for _, t := range turns {
		out = append(out, ai.Message{Role: t.Role, Content: t.Content})
	}
	return out
}

func (g *Gateway) logPersistFailure(err error, msg string) {
	ev := g.log.Warn()
	if errors.Is(err, resource.ErrProgrammingError) {
		ev = g.log.Error()
	}
	ev.Err(err).Str("kind", string(resource.KindOf(err))).Msg(msg)
}
