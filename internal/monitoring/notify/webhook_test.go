package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWebhookChannelPostsPayload(t *testing.T) {
	var got webhookPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	channel, err := NewWebhookChannel(server.URL)
	if err != nil {
		t.Fatalf("new channel: %v", err)
	}
	msg := Message{Subject: "2 Camera/NVR Alert(s)", Text: "2 camera(s) currently offline"}
	if err := channel.Send(context.Background(), msg); err != nil {
		t.Fatalf("send: %v", err)
	}
	if got.Subject != msg.Subject || got.Text != msg.Text {
		t.Fatalf("payload = %+v", got)
	}
}

func TestWebhookChannelRejectsNon2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer server.Close()

	channel, err := NewWebhookChannel(server.URL)
	if err != nil {
		t.Fatalf("new channel: %v", err)
	}
	if err := channel.Send(context.Background(), Message{Subject: "x"}); err == nil {
		t.Fatal("expected error for 403 response")
	}
}
