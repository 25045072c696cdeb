package llmclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foodflow/copilot/src/breaker"
	"github.com/foodflow/copilot/src/llm"
)

func testRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func successBody(content string) string {
	return `{
		"id": "chatcmpl-1",
		"model": "gpt-4-turbo-preview",
		"choices": [{"index": 0, "message": {"role": "assistant", "content": "` + content + `"}, "finish_reason": "stop"}],
		"usage": {"prompt_tokens": 12, "completion_tokens": 7, "total_tokens": 19}
	}`
}

func TestChatCompletionSuccess(t *testing.T) {
	var gotAuth string
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(successBody("hello there")))
	}))
	defer server.Close()

	client := NewClient(Config{
		APIKey:  "sk-test",
		BaseURL: server.URL,
		Retry:   testRetryPolicy(),
	})

	resp, err := client.ChatCompletion(context.Background(), &llm.ChatRequest{
		Messages: []*llm.Message{{Role: llm.RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)

	assert.Equal(t, "Bearer sk-test", gotAuth)
	assert.Equal(t, "gpt-4-turbo-preview", gotBody["model"])
	assert.Equal(t, "hello there", resp.Message.Content)
	assert.Equal(t, llm.FinishStop, resp.FinishReason)
	assert.Equal(t, 19, resp.Usage.TotalTokens)
	assert.False(t, resp.WantsTool())
}

func TestChatCompletionFunctionCall(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"choices": [{
				"index": 0,
				"message": {
					"role": "assistant",
					"content": "",
					"function_call": {"name": "get_line_status", "arguments": "{\"line_id\":\"L1\"}"}
				},
				"finish_reason": "function_call"
			}],
			"usage": {"prompt_tokens": 20, "completion_tokens": 10, "total_tokens": 30}
		}`))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "sk-test", BaseURL: server.URL, Retry: testRetryPolicy()})

	resp, err := client.ChatCompletion(context.Background(), &llm.ChatRequest{
		Messages: []*llm.Message{{Role: llm.RoleUser, Content: "line status?"}},
	})
	require.NoError(t, err)

	require.True(t, resp.WantsTool())
	assert.Equal(t, "get_line_status", resp.FunctionCall.Name)
	assert.JSONEq(t, `{"line_id":"L1"}`, string(resp.FunctionCall.Arguments))
	assert.Equal(t, llm.FinishFunctionCall, resp.FinishReason)
}

func TestRetriesServerErrorThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"error":{"message":"upstream hiccup","type":"server_error"}}`))
			return
		}
		w.Write([]byte(successBody("recovered")))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "sk-test", BaseURL: server.URL, Retry: testRetryPolicy()})

	resp, err := client.ChatCompletion(context.Background(), &llm.ChatRequest{
		Messages: []*llm.Message{{Role: llm.RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "recovered", resp.Message.Content)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClientErrorFailsFast(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"invalid request","type":"invalid_request_error","code":"bad_schema"}}`))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "sk-test", BaseURL: server.URL, Retry: testRetryPolicy()})

	_, err := client.ChatCompletion(context.Background(), &llm.ChatRequest{
		Messages: []*llm.Message{{Role: llm.RoleUser, Content: "hi"}},
	})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "invalid request", apiErr.Message)
	assert.Equal(t, "bad_schema", apiErr.Code)
	assert.Equal(t, int32(1), calls.Load(), "4xx must not be retried")
	assert.False(t, IsExhausted(err))
}

func TestRetriesExhausted(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "sk-test", BaseURL: server.URL, Retry: testRetryPolicy()})

	_, err := client.ChatCompletion(context.Background(), &llm.ChatRequest{
		Messages: []*llm.Message{{Role: llm.RoleUser, Content: "hi"}},
	})
	require.Error(t, err)
	assert.True(t, IsExhausted(err))
	assert.Equal(t, int32(3), calls.Load())
}

func TestOpenCircuitIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(Config{
		APIKey:  "sk-test",
		BaseURL: server.URL,
		Retry:   testRetryPolicy(),
		Breaker: breaker.New(breaker.WithFailureThreshold(1)),
	})

	_, err := client.ChatCompletion(context.Background(), &llm.ChatRequest{
		Messages: []*llm.Message{{Role: llm.RoleUser, Content: "hi"}},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, breaker.ErrCircuitOpen)
	assert.Equal(t, int32(1), calls.Load(), "open circuit must short-circuit later attempts")
}

func TestEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices": [], "usage": {"total_tokens": 0}}`))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "sk-test", BaseURL: server.URL, Retry: testRetryPolicy()})

	_, err := client.ChatCompletion(context.Background(), &llm.ChatRequest{
		Messages: []*llm.Message{{Role: llm.RoleUser, Content: "hi"}},
	})
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestRequestCarriesFunctionDeclarations(t *testing.T) {
	var gotBody struct {
		Functions []struct {
			Name string `json:"name"`
		} `json:"functions"`
		FunctionCall string `json:"function_call"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Write([]byte(successBody("ok")))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "sk-test", BaseURL: server.URL, Retry: testRetryPolicy()})

	_, err := client.ChatCompletion(context.Background(), &llm.ChatRequest{
		Messages:     []*llm.Message{{Role: llm.RoleUser, Content: "hi"}},
		Functions:    []*llm.FunctionDef{{Name: "get_lot_details", Description: "lot lookup"}},
		FunctionCall: llm.FunctionCallAuto,
	})
	require.NoError(t, err)

	require.Len(t, gotBody.Functions, 1)
	assert.Equal(t, "get_lot_details", gotBody.Functions[0].Name)
	assert.Equal(t, "auto", gotBody.FunctionCall)
}
