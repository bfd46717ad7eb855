package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type captured struct {
	method      string
	path        string
	query       string
	payloadJSON string
	imageBytes  []byte
	imageName   string
}

func webhookServer(t *testing.T, status int, responseBody string, out *captured) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		out.method = r.Method
		out.path = r.URL.Path
		out.query = r.URL.RawQuery

		if err := r.ParseMultipartForm(16 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		out.payloadJSON = r.FormValue("payload_json")
		if file, header, err := r.FormFile("file1"); err == nil {
			out.imageName = header.Filename
			out.imageBytes, _ = io.ReadAll(file)
			_ = file.Close()
		}

		w.WriteHeader(status)
		_, _ = w.Write([]byte(responseBody))
	}))
}

func TestPublishCreate(t *testing.T) {
	var got captured
	srv := webhookServer(t, http.StatusOK, `{"id":"111222333"}`, &got)
	defer srv.Close()

	c := New(srv.Client())
	id, err := c.Publish(context.Background(), srv.URL+"/api/webhooks/1/tok", "", []byte("png-bytes"), "Colonial Players: 1\nCylon Players: 1\nTotal Players: 2")
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if id != "111222333" {
		t.Fatalf("id = %q, want 111222333", id)
	}
	if got.method != http.MethodPost {
		t.Fatalf("method = %s, want POST", got.method)
	}
	if got.query != "wait=true" {
		t.Fatalf("query = %q, want wait=true", got.query)
	}
	if got.imageName != "bsgo_stats.png" || string(got.imageBytes) != "png-bytes" {
		t.Fatalf("unexpected image part: name=%q bytes=%q", got.imageName, got.imageBytes)
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(got.payloadJSON), &payload); err != nil {
		t.Fatalf("decode payload_json: %v", err)
	}
	if payload["content"] != "Colonial Players: 1\nCylon Players: 1\nTotal Players: 2" {
		t.Fatalf("unexpected content: %v", payload["content"])
	}
	if _, ok := payload["attachments"]; ok {
		t.Fatal("create should not carry an attachments directive")
	}
}

func TestPublishEdit(t *testing.T) {
	var got captured
	srv := webhookServer(t, http.StatusOK, `{"id":"111222333"}`, &got)
	defer srv.Close()

	c := New(srv.Client())
	id, err := c.Publish(context.Background(), srv.URL+"/api/webhooks/1/tok", "111222333", []byte("png2"), "text")
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if id != "111222333" {
		t.Fatalf("id = %q, want unchanged 111222333", id)
	}
	if got.method != http.MethodPatch {
		t.Fatalf("method = %s, want PATCH", got.method)
	}
	if !strings.HasSuffix(got.path, "/messages/111222333") {
		t.Fatalf("path = %q, want .../messages/111222333", got.path)
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(got.payloadJSON), &payload); err != nil {
		t.Fatalf("decode payload_json: %v", err)
	}
	attachments, ok := payload["attachments"].([]any)
	if !ok {
		t.Fatalf("edit payload missing attachments directive: %s", got.payloadJSON)
	}
	if len(attachments) != 0 {
		t.Fatalf("attachments should be cleared, got %v", attachments)
	}
}

func TestPublishNonSuccess(t *testing.T) {
	var got captured
	srv := webhookServer(t, http.StatusTooManyRequests, `{"message":"rate limited"}`, &got)
	defer srv.Close()

	c := New(srv.Client())
	if _, err := c.Publish(context.Background(), srv.URL, "", []byte("png"), "text"); err == nil {
		t.Fatal("expected error for 429 response")
	}
}

func TestPublishMissingID(t *testing.T) {
	var got captured
	srv := webhookServer(t, http.StatusOK, `{}`, &got)
	defer srv.Close()

	c := New(srv.Client())
	if _, err := c.Publish(context.Background(), srv.URL, "", []byte("png"), "text"); err == nil {
		t.Fatal("expected error for response without id")
	}
}
