// Package discord mirrors outbound notifications to an organizer channel
// through a Discord webhook.
package discord

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"trainingreg/internal/ports/output"
	pkgdiscord "trainingreg/pkg/discord"
)

var _ output.Notifier = (*WebhookNotifier)(nil)

// WebhookNotifier posts every message it is given to one webhook.
type WebhookNotifier struct {
	session   *discordgo.Session
	webhookID string
	token     string
	now       func() time.Time
}

// NewWebhookNotifier parses a webhook URL of the form
// https://discord.com/api/webhooks/{id}/{token}.
func NewWebhookNotifier(webhookURL string) (*WebhookNotifier, error) {
	id, token, err := ParseWebhookURL(webhookURL)
	if err != nil {
		return nil, err
	}
	// Webhook execution is authenticated by the token in the URL, no bot token needed.
	s, err := discordgo.New("")
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	return &WebhookNotifier{session: s, webhookID: id, token: token, now: time.Now}, nil
}

func (n *WebhookNotifier) Send(ctx context.Context, msg output.Message) error {
	params := &discordgo.WebhookParams{
		Embeds: []*discordgo.MessageEmbed{
			pkgdiscord.BuildNotificationEmbed(msg.To, msg.Subject, msg.Body, n.now()),
		},
		AllowedMentions: &discordgo.MessageAllowedMentions{},
	}
	if _, err := n.session.WebhookExecute(n.webhookID, n.token, false, params, discordgo.WithContext(ctx)); err != nil {
		return &output.DeliveryError{To: "discord webhook " + n.webhookID, Err: err}
	}
	return nil
}

// ParseWebhookURL extracts the webhook id and token from a webhook URL.
func ParseWebhookURL(raw string) (id, token string, err error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", "", fmt.Errorf("discord webhook url: %w", err)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i+2 < len(parts); i++ {
		if parts[i] == "webhooks" && parts[i+1] != "" && parts[i+2] != "" {
			return parts[i+1], parts[i+2], nil
		}
	}
	return "", "", fmt.Errorf("discord webhook url: expected .../webhooks/{id}/{token}, got %q", raw)
}
