package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
	ResponseFormat *struct {
		Type string `json:"type"`
	} `json:"response_format"`
}

func newServer(t *testing.T, content string, status int, got *chatRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s; want /chat/completions", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer key" {
			t.Errorf("Authorization = %q; want %q", auth, "Bearer key")
		}
		if got != nil {
			if err := json.NewDecoder(r.Body).Decode(got); err != nil {
				t.Errorf("couldn't decode request: %v", err)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "1",
			"object": "chat.completion",
			"model":  "test",
			"choices": []map[string]any{
				{
					"index":         0,
					"finish_reason": "stop",
					"message": map[string]any{
						"role":    "assistant",
						"content": content,
					},
				},
			},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestJSONCompletion(t *testing.T) {
	var req chatRequest
	srv := newServer(t, ` {"title":"x"} `, http.StatusOK, &req)
	c := New(&Config{BaseURL: srv.URL + "/", Model: "test-model"})

	got, err := c.JSONCompletion(context.Background(), "key", "system", "user")
	if err != nil {
		t.Fatalf("JSONCompletion() err = %v; want nil", err)
	}
	if got != `{"title":"x"}` {
		t.Fatalf("JSONCompletion() = %q", got)
	}
	if req.Model != "test-model" {
		t.Fatalf("model = %q; want test-model", req.Model)
	}
	if len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Messages[1].Content != "user" {
		t.Fatalf("messages = %+v", req.Messages)
	}
	if req.ResponseFormat == nil || req.ResponseFormat.Type != "json_object" {
		t.Fatalf("response_format = %+v; want json_object", req.ResponseFormat)
	}
}

func TestEmptyResponse(t *testing.T) {
	srv := newServer(t, "  ", http.StatusOK, nil)
	c := New(&Config{BaseURL: srv.URL})
	if _, err := c.ChatCompletion(context.Background(), "key", "Hi"); !errors.Is(err, ErrEmptyResponse) {
		t.Fatalf("ChatCompletion() err = %v; want %v", err, ErrEmptyResponse)
	}
}

func TestPing(t *testing.T) {
	ok := newServer(t, "Hello", http.StatusOK, nil)
	if err := New(&Config{BaseURL: ok.URL}).Ping(context.Background(), "key"); err != nil {
		t.Fatalf("Ping() err = %v; want nil", err)
	}
	bad := newServer(t, "", http.StatusUnauthorized, nil)
	if err := New(&Config{BaseURL: bad.URL}).Ping(context.Background(), "key"); err == nil {
		t.Fatal("Ping() err = nil; want error")
	}
}
