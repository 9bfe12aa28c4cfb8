package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restoassist/internal/resource"
)

const modelsBody = `{"object":"list","data":[{"id":"gpt-4o-mini","object":"model","created":1700000000,"owned_by":"openai"}]}`

func chatBody(content string) string {
	b, _ := json.Marshal(map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1700000000,
		"model":   "gpt-4o-mini",
		"choices": []map[string]any{{
			"index":         0,
			"message":       map[string]string{"role": "assistant", "content": content},
			"finish_reason": "stop",
		}},
		"usage": map[string]int{"prompt_tokens": 12, "completion_tokens": 5, "total_tokens": 17},
	})
	return string(b)
}

type fakeAPI struct {
	srv        *httptest.Server
	modelCalls atomic.Int64
	chatCalls  atomic.Int64

	mu       sync.Mutex
	lastChat map[string]any

	modelsStatus int
	chatStatus   int
	chatReply    string
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	f := &fakeAPI{modelsStatus: http.StatusOK, chatStatus: http.StatusOK, chatReply: chatBody("Polecam pierogi.")}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v1/models":
			f.modelCalls.Add(1)
			if f.modelsStatus != http.StatusOK {
				w.WriteHeader(f.modelsStatus)
				_, _ = w.Write([]byte(`{"error":{"message":"Incorrect API key provided","type":"invalid_request_error"}}`))
				return
			}
			_, _ = w.Write([]byte(modelsBody))
		case "/v1/chat/completions":
			f.chatCalls.Add(1)
			var body map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)
			f.mu.Lock()
			f.lastChat = body
			f.mu.Unlock()
			if f.chatStatus != http.StatusOK {
				w.WriteHeader(f.chatStatus)
				_, _ = w.Write([]byte(`{"error":{"message":"You exceeded your current quota","type":"insufficient_quota"}}`))
				return
			}
			_, _ = w.Write([]byte(f.chatReply))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeAPI) options() Options {
	return Options{APIKey: "sk-test", BaseURL: f.srv.URL + "/v1", Logger: zerolog.Nop()}
}

func TestInitializeWithoutKeyIsDisabled(t *testing.T) {
	f := newFakeAPI(t)
	opts := f.options()
	opts.APIKey = ""

	c, err := Initialize(context.Background(), opts)
	require.Error(t, err)
	assert.True(t, errors.Is(err, resource.ErrUnconfigured))
	assert.Equal(t, resource.StateUnconfigured, c.State())

	_, err = c.Invoke(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, InvokeOptions{})
	assert.True(t, errors.Is(err, resource.ErrUnconfigured))
	assert.Equal(t, int64(0), f.modelCalls.Load())
	assert.Equal(t, int64(0), f.chatCalls.Load())
}

func TestInitializeVerificationFailureIsUnavailable(t *testing.T) {
	f := newFakeAPI(t)
	f.modelsStatus = http.StatusUnauthorized

	c, err := Initialize(context.Background(), f.options())
	require.Error(t, err)
	assert.True(t, errors.Is(err, resource.ErrUnavailable))
	assert.Equal(t, resource.StateUnavailable, c.State())
	assert.Equal(t, http.StatusUnauthorized, statusCode(c.Cause()))

	_, err = c.Invoke(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, InvokeOptions{})
	assert.True(t, errors.Is(err, resource.ErrUnavailable))
	assert.Equal(t, int64(0), f.chatCalls.Load())
}

func TestInvokeReturnsReply(t *testing.T) {
	f := newFakeAPI(t)
	c, err := Initialize(context.Background(), f.options())
	require.NoError(t, err)
	assert.Equal(t, resource.StateReady, c.State())
	assert.Equal(t, DefaultModel, c.Model())

	reply, err := c.Invoke(context.Background(), []Message{
		{Role: RoleSystem, Content: "You are a restaurant assistant."},
		{Role: RoleUser, Content: "What do you recommend?"},
	}, InvokeOptions{MaxTokens: 100, Temperature: 0.7})
	require.NoError(t, err)

	assert.Equal(t, "Polecam pierogi.", reply.Content)
	assert.Equal(t, "stop", reply.FinishReason)
	assert.Equal(t, 17, reply.Usage.TotalTokens)

	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Equal(t, "gpt-4o-mini", f.lastChat["model"])
	assert.EqualValues(t, 100, f.lastChat["max_tokens"])
	assert.Len(t, f.lastChat["messages"], 2)
}

func TestInvokeUpstreamFailureIsNotRetried(t *testing.T) {
	f := newFakeAPI(t)
	f.chatStatus = http.StatusTooManyRequests
	c, err := Initialize(context.Background(), f.options())
	require.NoError(t, err)

	_, err = c.Invoke(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, InvokeOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, resource.ErrUpstream))
	assert.Equal(t, http.StatusTooManyRequests, statusCode(err))
	assert.Equal(t, int64(1), f.chatCalls.Load(), "single attempt per invocation")
}

func TestInvokeEmptyChoicesIsMalformed(t *testing.T) {
	f := newFakeAPI(t)
	f.chatReply = `{"id":"x","object":"chat.completion","model":"gpt-4o-mini","choices":[],"usage":{}}`
	c, err := Initialize(context.Background(), f.options())
	require.NoError(t, err)

	_, err = c.Invoke(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, InvokeOptions{})
	assert.True(t, errors.Is(err, resource.ErrMalformedReply))
}

func TestInvokeBoundsHistory(t *testing.T) {
	f := newFakeAPI(t)
	c, err := Initialize(context.Background(), f.options())
	require.NoError(t, err)

	msgs := []Message{{Role: RoleSystem, Content: "sys"}}
	for i := 0; i < 10; i++ {
		msgs = append(msgs, Message{Role: RoleUser, Content: "question"}, Message{Role: RoleAssistant, Content: "answer"})
	}
	msgs = append(msgs, Message{Role: RoleUser, Content: "last"})

	_, err = c.Invoke(context.Background(), msgs, InvokeOptions{HistoryTurns: 3})
	require.NoError(t, err)

	f.mu.Lock()
	defer f.mu.Unlock()
	sent, ok := f.lastChat["messages"].([]any)
	require.True(t, ok)
	require.Len(t, sent, 4)
	assert.Equal(t, "system", sent[0].(map[string]any)["role"])
	assert.Equal(t, "last", sent[3].(map[string]any)["content"])
}

func TestInvokeConcurrentUse(t *testing.T) {
	f := newFakeAPI(t)
	c, err := Initialize(context.Background(), f.options())
	require.NoError(t, err)

	var wg sync.WaitGroup
	var failures atomic.Int64
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Invoke(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, InvokeOptions{}); err != nil {
				failures.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(0), failures.Load())
	assert.Equal(t, int64(16), f.chatCalls.Load())
}
