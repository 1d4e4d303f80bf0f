package discord

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/require"

	"trainingreg/internal/ports/output"
)

// fakeDiscord points discordgo's webhook endpoints at an httptest server
// answering with status. The returned func reports the requests seen so far.
func fakeDiscord(t *testing.T, status int) func() ([]discordgo.WebhookParams, []string) {
	t.Helper()
	var (
		mu       sync.Mutex
		payloads []discordgo.WebhookParams
		paths    []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p discordgo.WebhookParams
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		mu.Lock()
		payloads = append(payloads, p)
		paths = append(paths, r.Method+" "+r.URL.Path)
		mu.Unlock()
		w.WriteHeader(status)
	}))
	prev := discordgo.EndpointWebhooks
	discordgo.EndpointWebhooks = srv.URL + "/api/webhooks/"
	t.Cleanup(func() {
		discordgo.EndpointWebhooks = prev
		srv.Close()
	})
	return func() ([]discordgo.WebhookParams, []string) {
		mu.Lock()
		defer mu.Unlock()
		return payloads, paths
	}
}

func TestParseWebhookURL(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		id      string
		token   string
		wantErr bool
	}{
		{name: "canonical", raw: "https://discord.com/api/webhooks/123/abc-DEF", id: "123", token: "abc-DEF"},
		{name: "versioned api", raw: "https://discord.com/api/v10/webhooks/9/tok/", id: "9", token: "tok"},
		{name: "missing token", raw: "https://discord.com/api/webhooks/123", wantErr: true},
		{name: "not a webhook", raw: "https://example.com/hooks/1/2", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, token, err := ParseWebhookURL(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.id, id)
			require.Equal(t, tt.token, token)
		})
	}
}

func TestNewWebhookNotifier(t *testing.T) {
	n, err := NewWebhookNotifier("https://discord.com/api/webhooks/123/abc")
	require.NoError(t, err)
	require.Equal(t, "123", n.webhookID)
	require.Equal(t, "abc", n.token)

	_, err = NewWebhookNotifier("nope")
	require.Error(t, err)
}

func TestWebhookNotifier_Send(t *testing.T) {
	requests := fakeDiscord(t, http.StatusNoContent)

	n, err := NewWebhookNotifier("https://discord.com/api/webhooks/123/abc")
	require.NoError(t, err)
	n.now = func() time.Time { return time.Date(2025, 11, 17, 19, 0, 0, 0, time.UTC) }

	err = n.Send(context.Background(), output.Message{
		To:      "ada@example.com",
		Subject: "Spot available!",
		Body:    "Cancel here: https://train.example.com/cancel/secret-token",
	})
	require.NoError(t, err)

	payloads, paths := requests()
	require.Equal(t, []string{"POST /api/webhooks/123/abc"}, paths)
	require.Len(t, payloads, 1)
	sent := payloads[0]
	require.Len(t, sent.Embeds, 1)
	require.Equal(t, "📧 Spot available!", sent.Embeds[0].Title)
	require.Equal(t, "Cancel here: https://train.example.com/cancel/[redacted]", sent.Embeds[0].Description)
	require.Equal(t, "To: ada@example.com • 17-11 20:00", sent.Embeds[0].Footer.Text)
	require.NotNil(t, sent.AllowedMentions)
	require.Empty(t, sent.AllowedMentions.Parse)
}

func TestWebhookNotifier_SendFailure(t *testing.T) {
	fakeDiscord(t, http.StatusBadRequest)

	n, err := NewWebhookNotifier("https://discord.com/api/webhooks/123/abc")
	require.NoError(t, err)

	err = n.Send(context.Background(), output.Message{To: "ada@example.com", Subject: "s", Body: "b"})
	var derr *output.DeliveryError
	require.ErrorAs(t, err, &derr)
	require.Contains(t, derr.To, "123")
}
