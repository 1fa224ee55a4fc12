package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGenerateJSONDecodesAnswer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("x-api-key"); got != "key" {
			t.Errorf("unexpected api key header: %s", got)
		}
		if got := r.Header.Get("anthropic-version"); got == "" {
			t.Error("missing anthropic-version header")
		}

		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		if req["model"] != "test-model" {
			t.Errorf("unexpected model: %v", req["model"])
		}

		json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]any{
				{"type": "text", "text": `{"is_cv": true}`},
			},
			"stop_reason": "end_turn",
		})
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL, APIKey: "key", Model: "test-model"})

	var out struct {
		IsCV bool `json:"is_cv"`
	}
	err := client.GenerateJSON(context.Background(), Request{
		System: "Decide if the file is a CV.",
		Prompt: "Is this a CV?",
	}, &out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.IsCV {
		t.Fatal("expected is_cv true")
	}
}

func TestGenerateJSONToleratesCodeFence(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]any{
				{"type": "text", "text": "```json\n{\"score\": 7}\n```"},
			},
		})
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL, APIKey: "key", Model: "m"})

	var out struct {
		Score int `json:"score"`
	}
	if err := client.GenerateJSON(context.Background(), Request{Prompt: "score it"}, &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Score != 7 {
		t.Fatalf("expected score 7, got %d", out.Score)
	}
}

func TestExtractJSON(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{`{"a":1}`, `{"a":1}`},
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"Here you go: {\"a\":1}", `{"a":1}`},
		{"[1,2,3]", `[1,2,3]`},
	}
	for _, c := range cases {
		if got := extractJSON(c.in); got != c.want {
			t.Errorf("extractJSON(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestGenerateJSONNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"type":"overloaded_error"}}`, http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL, APIKey: "key", Model: "m"})

	var out struct{}
	if err := client.GenerateJSON(context.Background(), Request{Prompt: "x"}, &out); err == nil {
		t.Fatal("expected error for 503 response")
	}
}
