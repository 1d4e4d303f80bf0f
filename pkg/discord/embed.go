package discord

import (
	"regexp"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"trainingreg/pkg/tz"
)

const (
	embedColor     = 0x5865F2
	embedMaxLength = 4096
)

// cancelToken matches the secret part of a cancel link.
var cancelToken = regexp.MustCompile(`/cancel/[^\s/?#]+`)

// BuildNotificationEmbed renders an outbound notification for an organizer
// channel: subject as title, body as description, recipient in the footer.
// Cancel links are redacted; the channel must not be able to cancel for the
// recipient.
func BuildNotificationEmbed(to, subject, body string, sentAt time.Time) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       "📧 " + subject,
		Description: truncate(RedactCancelLinks(body), embedMaxLength),
		Color:       embedColor,
		Footer:      &discordgo.MessageEmbedFooter{Text: "To: " + to + " • " + tz.Format(sentAt, tz.Amsterdam)},
		Timestamp:   sentAt.UTC().Format(time.RFC3339),
	}
}

// RedactCancelLinks replaces the token of every cancel link in s.
func RedactCancelLinks(s string) string {
	return cancelToken.ReplaceAllString(s, "/cancel/[redacted]")
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if len([]rune(s)) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max-1]) + "…"
}
