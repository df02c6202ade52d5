package telegram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/rg/smsrelay/internal/messaging"
)

const testToken = "123:test-token"

// fakeBotAPI answers the two Bot API methods the client uses and records
// every sendMessage call.
type fakeBotAPI struct {
	mu      sync.Mutex
	sent    []map[string]string
	failing bool
}

func (f *fakeBotAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	switch r.URL.Path {
	case "/bot" + testToken + "/getMe":
		_, _ = w.Write([]byte(`{"ok":true,"result":{"id":42,"is_bot":true,"first_name":"relay","username":"relay_bot"}}`))
	case "/bot" + testToken + "/sendMessage":
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if f.failing {
			_, _ = w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`))
			return
		}
		f.mu.Lock()
		f.sent = append(f.sent, map[string]string{
			"chat_id": r.PostForm.Get("chat_id"),
			"text":    r.PostForm.Get("text"),
		})
		id := len(f.sent)
		f.mu.Unlock()
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":` + strconv.Itoa(id) + `,"date":0,"chat":{"id":-100,"type":"group"}}}`))
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeBotAPI) messages() []map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]map[string]string(nil), f.sent...)
}

func newTestClient(t *testing.T, api *fakeBotAPI) *Client {
	t.Helper()

	server := httptest.NewServer(api)
	t.Cleanup(server.Close)

	client, err := NewClientWithEndpoint(testToken, server.URL+"/bot%s/%s", -100, server.Client())
	if err != nil {
		t.Fatalf("NewClientWithEndpoint() error = %v", err)
	}
	return client
}

func TestClient_Send(t *testing.T) {
	api := &fakeBotAPI{}
	client := newTestClient(t, api)

	parts := []*messaging.OutgoingPart{
		{SmsID: "a", From: "+15550001", To: "+15550002", Index: 1, Total: 2, Text: "Hello... - Part 1 of 2"},
		{SmsID: "a", From: "+15550001", To: "+15550002", Index: 2, Total: 2, Text: "*world*... - Part 2 of 2"},
	}
	for _, p := range parts {
		if err := client.Send(context.Background(), p); err != nil {
			t.Fatalf("Send() error = %v", err)
		}
	}

	sent := api.messages()
	if len(sent) != 2 {
		t.Fatalf("sent %d messages, want 2", len(sent))
	}
	if got := sent[0]["chat_id"]; got != "-100" {
		t.Errorf("chat_id = %q, want -100", got)
	}
	want := "SMS +15550001 -> +15550002 [2/2]\n*world*... - Part 2 of 2"
	if got := sent[1]["text"]; got != want {
		t.Errorf("text = %q, want %q", got, want)
	}
	if client.Name() != "telegram" {
		t.Errorf("Name() = %q", client.Name())
	}
}

func TestClient_SendError(t *testing.T) {
	client := newTestClient(t, &fakeBotAPI{failing: true})

	err := client.Send(context.Background(), &messaging.OutgoingPart{Index: 1, Total: 3, Text: "x"})
	if err == nil {
		t.Fatal("Send() expected error")
	}
	if !strings.Contains(err.Error(), "failed to send part 1 of 3") || !strings.Contains(err.Error(), "chat not found") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestClient_SendCancelled(t *testing.T) {
	api := &fakeBotAPI{}
	client := newTestClient(t, api)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := client.Send(ctx, &messaging.OutgoingPart{Text: "x"}); err == nil {
		t.Fatal("Send() expected error on cancelled context")
	}
	if n := len(api.messages()); n != 0 {
		t.Errorf("sent %d messages, want 0", n)
	}
}

func TestFormatPart(t *testing.T) {
	tests := []struct {
		name string
		part messaging.OutgoingPart
		want string
	}{
		{
			name: "with_header",
			part: messaging.OutgoingPart{From: "+1", To: "+2", Index: 3, Total: 9, Text: "body"},
			want: "SMS +1 -> +2 [3/9]\nbody",
		},
		{
			name: "too_long_for_header",
			part: messaging.OutgoingPart{From: "+1", To: "+2", Index: 1, Total: 1, Text: strings.Repeat("x", MaxMessageLength)},
			want: strings.Repeat("x", MaxMessageLength),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatPart(&tt.part); got != tt.want {
				t.Errorf("formatPart() = %q, want %q", got, tt.want)
			}
		})
	}
}
