// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClientWithConfig(&ClientConfig{
		BaseURL:    srv.URL,
		Timeout:    5 * time.Second,
		MaxRetries: 0,
		RetryDelay: time.Millisecond,
	})
}

// =============================================================================
// MESSAGE TESTS
// =============================================================================

func TestMessageHelpers(t *testing.T) {
	if m := NewUserMessage("Hello"); m.Role != "user" || m.Content != "Hello" {
		t.Errorf("NewUserMessage = %+v", m)
	}
	if m := NewSystemMessage("rules"); m.Role != "system" {
		t.Errorf("Role = %q, want 'system'", m.Role)
	}
	if m := NewAssistantMessage("hi"); m.Role != "assistant" {
		t.Errorf("Role = %q, want 'assistant'", m.Role)
	}
}

func TestOptions_TemperatureAlwaysSent(t *testing.T) {
	data, err := json.Marshal(ChatRequest{Model: "m", Options: &Options{Temperature: 0}})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"temperature":0`) {
		t.Errorf("marshaled request = %s, want temperature:0", data)
	}
}

// =============================================================================
// CHAT TESTS
// =============================================================================

func TestChat_SendsFormatAndOptions(t *testing.T) {
	var got ChatRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("path = %q, want /api/chat", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		fmt.Fprint(w, `{"model":"llama3.2","message":{"role":"assistant","content":"{\"datasource\":\"vectorstore\"}"},"done":true,"done_reason":"stop"}`)
	})

	resp, err := client.Chat(context.Background(), ChatRequest{
		Model:    "llama3.2",
		Messages: []Message{NewSystemMessage("route"), NewUserMessage("q")},
		Format:   "json",
		Options:  &Options{Temperature: 0, NumCtx: 4096},
		Stream:   true,
	})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}

	if got.Format != "json" {
		t.Errorf("Format = %q, want 'json'", got.Format)
	}
	if got.Stream {
		t.Error("Chat() must send stream=false")
	}
	if got.Options == nil || got.Options.NumCtx != 4096 {
		t.Errorf("Options = %+v", got.Options)
	}
	if resp.DoneReason != "stop" {
		t.Errorf("DoneReason = %q, want 'stop'", resp.DoneReason)
	}
	if resp.Message.Content != `{"datasource":"vectorstore"}` {
		t.Errorf("Content = %q", resp.Message.Content)
	}
}

func TestChat_DefaultModel(t *testing.T) {
	var got ChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		fmt.Fprint(w, `{"done":true}`)
	}))
	defer srv.Close()

	client := NewClientWithConfig(&ClientConfig{BaseURL: srv.URL, DefaultModel: "gemma2:27b"})
	if _, err := client.Chat(context.Background(), ChatRequest{}); err != nil {
		t.Fatal(err)
	}
	if got.Model != "gemma2:27b" {
		t.Errorf("Model = %q, want default", got.Model)
	}
}

func TestChat_ModelNotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":"model 'nope' not found"}`)
	})

	_, err := client.Chat(context.Background(), ChatRequest{Model: "nope"})
	if !IsModelNotFound(err) {
		t.Fatalf("err = %v, want model not found", err)
	}
	if !strings.Contains(err.Error(), "nope") {
		t.Errorf("error should carry server message, got %q", err.Error())
	}
}

func TestChat_ServerErrorMessage(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"error":"out of memory"}`)
	})

	_, err := client.Chat(context.Background(), ChatRequest{Model: "m"})
	if err == nil || err.Error() != "out of memory" {
		t.Errorf("err = %v, want 'out of memory'", err)
	}
}

func TestChat_NotRunning(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	client := NewClientWithConfig(&ClientConfig{BaseURL: url, MaxRetries: 1, RetryDelay: time.Millisecond})
	_, err := client.Chat(context.Background(), ChatRequest{Model: "m"})
	if !IsNotRunning(err) {
		t.Errorf("err = %v, want not running", err)
	}
}

func TestChat_RetriesConnectionFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			hj, ok := w.(http.Hijacker)
			if !ok {
				t.Fatal("hijack unsupported")
			}
			conn, _, _ := hj.Hijack()
			conn.Close()
			return
		}
		fmt.Fprint(w, `{"message":{"content":"ok"},"done":true}`)
	}))
	defer srv.Close()

	client := NewClientWithConfig(&ClientConfig{BaseURL: srv.URL, MaxRetries: 2, RetryDelay: time.Millisecond})
	resp, err := client.Chat(context.Background(), ChatRequest{Model: "m"})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if resp.Message.Content != "ok" {
		t.Errorf("Content = %q", resp.Message.Content)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
}

func TestChat_Canceled(t *testing.T) {
	// The handler holds the request until the test ends. The server only sees
	// a closed client once the body is read, so it waits on its own channel.
	release := make(chan struct{})
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	t.Cleanup(func() { close(release) })

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := client.Chat(ctx, ChatRequest{Model: "m"})
	if !IsCanceled(err) {
		t.Errorf("err = %v, want canceled", err)
	}
	if IsNotRunning(err) {
		t.Error("a canceled request must not look like a dead server")
	}
}

// =============================================================================
// STREAMING TESTS
// =============================================================================

func TestChatStream(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req ChatRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if !req.Stream {
			t.Error("ChatStream must send stream=true")
		}
		lines := []string{
			`{"model":"llama3.2","message":{"content":"Hel"},"done":false}`,
			``,
			`not json`,
			`{"model":"llama3.2","message":{"content":"lo"},"done":false}`,
			`{"model":"llama3.2","message":{"content":""},"done":true,"done_reason":"stop","eval_count":2}`,
		}
		for _, l := range lines {
			fmt.Fprintln(w, l)
		}
	})

	var pieces []string
	resp, err := client.ChatStream(context.Background(), ChatRequest{Model: "llama3.2"}, func(c StreamChunk) {
		pieces = append(pieces, c.Content)
	})
	if err != nil {
		t.Fatalf("ChatStream() error = %v", err)
	}

	if resp.Message.Content != "Hello" {
		t.Errorf("Content = %q, want 'Hello'", resp.Message.Content)
	}
	if resp.DoneReason != "stop" || resp.EvalCount != 2 {
		t.Errorf("final = %+v", resp)
	}
	if len(pieces) != 3 {
		t.Errorf("callback called %d times, want 3", len(pieces))
	}
}

func TestStreamReader_TruncatedStream(t *testing.T) {
	r := NewStreamReader(strings.NewReader(`{"message":{"content":"partial"},"done":false}`))
	_, err := r.Process(context.Background(), nil)
	if err == nil {
		t.Fatal("expected error for stream without done chunk")
	}
	if r.Accumulated() != "partial" {
		t.Errorf("Accumulated() = %q", r.Accumulated())
	}
}

func TestStreamReader_ErrorLine(t *testing.T) {
	r := NewStreamReader(strings.NewReader("{\"error\":\"boom\"}\n"))
	_, err := r.Process(context.Background(), nil)
	if err == nil || err.Error() != "boom" {
		t.Errorf("err = %v, want boom", err)
	}
}

// =============================================================================
// EMBEDDING TESTS
// =============================================================================

func TestEmbed(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			t.Errorf("path = %q, want /api/embed", r.URL.Path)
		}
		var req EmbedRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		vecs := make([][]float64, len(req.Input))
		for i := range req.Input {
			vecs[i] = []float64{float64(i), 1}
		}
		_ = json.NewEncoder(w).Encode(EmbedResponse{Model: req.Model, Embeddings: vecs})
	})

	vecs, err := client.Embed(context.Background(), "nomic-embed-text", []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(vecs) != 3 || vecs[2][0] != 2 {
		t.Errorf("vecs = %v", vecs)
	}
}

func TestEmbed_CountMismatch(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"embeddings":[[1,2]]}`)
	})

	if _, err := client.Embed(context.Background(), "m", []string{"a", "b"}); err == nil {
		t.Error("expected count mismatch error")
	}
}

func TestEmbed_Empty(t *testing.T) {
	client := NewClient()
	vecs, err := client.Embed(context.Background(), "m", nil)
	if err != nil || vecs != nil {
		t.Errorf("Embed(nil) = %v, %v", vecs, err)
	}
}

// =============================================================================
// MODEL LIST TESTS
// =============================================================================

func TestListModels(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			t.Errorf("path = %q", r.URL.Path)
		}
		fmt.Fprint(w, `{"models":[{"name":"llama3.2:3b-instruct-fp16","size":6400000000},{"name":"nomic-embed-text:latest"}]}`)
	})

	models, err := client.ListModels(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(models) != 2 || models[0].Name != "llama3.2:3b-instruct-fp16" {
		t.Errorf("models = %+v", models)
	}
}

func TestCheckRunning(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "Ollama is running")
	})
	if err := client.CheckRunning(context.Background()); err != nil {
		t.Errorf("CheckRunning() = %v", err)
	}
}

// =============================================================================
// ERROR TESTS
// =============================================================================

func TestClientError_Is(t *testing.T) {
	err := fmt.Errorf("grading: %w", &ClientError{Type: ErrTypeTimeout, Message: "request timed out", Cause: context.DeadlineExceeded})

	if !IsTimeout(err) {
		t.Error("IsTimeout() = false, want true")
	}
	if IsNotRunning(err) {
		t.Error("IsNotRunning() = true, want false")
	}
}
