package discord

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"
)

// SessionResponder edits interaction responses through the Discord REST API.
// Interaction webhooks are authorized by their token, so no bot token is needed.
type SessionResponder struct {
	session *discordgo.Session
}

// NewSessionResponder creates a responder whose HTTP calls time out after timeout.
func NewSessionResponder(timeout time.Duration) (*SessionResponder, error) {
	s, err := discordgo.New("")
	if err != nil {
		return nil, err
	}
	s.Client = &http.Client{Timeout: timeout}
	return &SessionResponder{session: s}, nil
}

func (r *SessionResponder) EditResponse(ctx context.Context, interaction *discordgo.Interaction, edit *discordgo.WebhookEdit) error {
	_, err := r.session.InteractionResponseEdit(interaction, edit, discordgo.WithContext(ctx))
	return err
}

// RegisterCommands overwrites the global (or guild) command set. It needs a bot token.
func RegisterCommands(ctx context.Context, botToken, applicationID, guildID string, defs []*discordgo.ApplicationCommand) ([]*discordgo.ApplicationCommand, error) {
	s, err := discordgo.New("Bot " + botToken)
	if err != nil {
		return nil, err
	}
	return s.ApplicationCommandBulkOverwrite(applicationID, guildID, defs, discordgo.WithContext(ctx))
}
