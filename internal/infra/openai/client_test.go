package openai

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestCreateChatCompletionDecodesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("неожиданный путь %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("нет заголовка авторизации")
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"bullets\":[]}"}}],"usage":{"prompt_tokens":3,"completion_tokens":2}}`))
	}))
	defer srv.Close()

	c := NewClient("sk-test", srv.URL+"/", time.Second)
	resp, err := c.CreateChatCompletion(context.Background(), ChatCompletionRequest{Model: "m"})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(resp.Choices) != 1 || resp.Choices[0].Message.Content != `{"bullets":[]}` {
		t.Fatalf("неожиданный ответ: %+v", resp)
	}
}

func TestCreateChatCompletionAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"slow down"}}`))
	}))
	defer srv.Close()

	c := NewClient("sk-test", srv.URL, time.Second)
	_, err := c.CreateChatCompletion(context.Background(), ChatCompletionRequest{Model: "m"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusTooManyRequests || apiErr.Message != "slow down" {
		t.Fatalf("ожидали APIError 429, получили %v", err)
	}
	if !IsTransient(err) {
		t.Fatalf("429 должен считаться временной ошибкой")
	}
}

func TestBreakerOpensOnConsecutiveServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient("sk-test", srv.URL, time.Second, WithBreaker(2, time.Hour))
	for i := 0; i < 2; i++ {
		if _, err := c.CreateChatCompletion(context.Background(), ChatCompletionRequest{}); err == nil {
			t.Fatalf("ожидали ошибку на попытке %d", i)
		}
	}
	_, err := c.CreateChatCompletion(context.Background(), ChatCompletionRequest{})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("ожидали ErrCircuitOpen, получили %v", err)
	}
	if IsTransient(err) {
		t.Fatalf("разомкнутый breaker не должен считаться временной ошибкой")
	}
	if hits.Load() != 2 {
		t.Fatalf("ожидали 2 запроса к серверу, получили %d", hits.Load())
	}
}

func TestBreakerIgnoresClientErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClient("sk-test", srv.URL, time.Second, WithBreaker(1, time.Hour))
	for i := 0; i < 3; i++ {
		_, err := c.CreateChatCompletion(context.Background(), ChatCompletionRequest{})
		if errors.Is(err, ErrCircuitOpen) {
			t.Fatalf("400 не должен размыкать breaker")
		}
	}
	if hits.Load() != 3 {
		t.Fatalf("ожидали 3 запроса, получили %d", hits.Load())
	}
}

func TestCreateChatCompletionWithoutKey(t *testing.T) {
	c := NewClient("", "http://127.0.0.1:1", time.Second)
	if _, err := c.CreateChatCompletion(context.Background(), ChatCompletionRequest{}); !errors.Is(err, ErrNoAPIKey) {
		t.Fatalf("ожидали ErrNoAPIKey, получили %v", err)
	}
}
