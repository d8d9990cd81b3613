// Package discord adapts Discord interaction webhooks to the command registry.
package discord

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/pokedi/edfc/internal/commands"
	"github.com/pokedi/edfc/internal/logging"
	"github.com/pokedi/edfc/internal/metrics"
)

// DefaultFollowupTimeout bounds a deferred handler and its follow-up edit.
const DefaultFollowupTimeout = 60 * time.Second

// Responder delivers the result of a deferred interaction.
type Responder interface {
	EditResponse(ctx context.Context, interaction *discordgo.Interaction, edit *discordgo.WebhookEdit) error
}

// Config configures the interactions handler.
type Config struct {
	PublicKey       string // hex encoded ed25519 key from the developer portal
	FollowupTimeout time.Duration
}

// Handler answers interaction webhooks.
type Handler struct {
	publicKey ed25519.PublicKey
	registry  *commands.Registry
	responder Responder
	timeout   time.Duration
	logger    *logging.Logger
	metrics   *metrics.Metrics

	pending sync.WaitGroup
}

// ParsePublicKey decodes a hex encoded ed25519 public key.
func ParsePublicKey(s string) (ed25519.PublicKey, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid public key: %w", err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("invalid public key: expected %d bytes, got %d", ed25519.PublicKeySize, len(raw))
	}
	return ed25519.PublicKey(raw), nil
}

// NewHandler creates a handler. An empty public key is rejected.
func NewHandler(cfg Config, registry *commands.Registry, responder Responder, logger *logging.Logger, m *metrics.Metrics) (*Handler, error) {
	key, err := ParsePublicKey(cfg.PublicKey)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NewLogger()
	}
	timeout := cfg.FollowupTimeout
	if timeout <= 0 {
		timeout = DefaultFollowupTimeout
	}
	return &Handler{
		publicKey: key,
		registry:  registry,
		responder: responder,
		timeout:   timeout,
		logger:    logger,
		metrics:   m,
	}, nil
}

// Verify checks the request signature. The body stays readable afterwards.
func (h *Handler) Verify(r *http.Request) bool {
	return discordgo.VerifyInteraction(r, h.publicKey)
}

// Handle answers one verified interaction payload. Deferred commands return
// the deferred acknowledgement immediately and finish in the background.
func (h *Handler) Handle(ctx context.Context, body []byte) (*discordgo.InteractionResponse, error) {
	var interaction discordgo.Interaction
	if err := json.Unmarshal(body, &interaction); err != nil {
		return nil, fmt.Errorf("invalid interaction payload: %w", err)
	}

	if interaction.Type == discordgo.InteractionPing {
		return &discordgo.InteractionResponse{Type: discordgo.InteractionResponsePong}, nil
	}

	req, err := toRequest(&interaction)
	if err != nil {
		return nil, err
	}

	ctx, _ = logging.EnsureCorrelationID(ctx, interaction.ID)
	h.metrics.RecordInteraction(req.Kind.String(), req.Name)
	h.logger.DebugWithContext(ctx, "interaction received",
		"kind", req.Kind.String(),
		"name", req.Name,
		"user_id", req.UserID,
	)

	if h.registry.IsDeferred(req) {
		h.runDeferred(ctx, &interaction, req)
		if req.Kind == commands.KindComponent {
			return &discordgo.InteractionResponse{Type: discordgo.InteractionResponseDeferredMessageUpdate}, nil
		}
		return &discordgo.InteractionResponse{Type: discordgo.InteractionResponseDeferredChannelMessageWithSource}, nil
	}

	reply := h.registry.Dispatch(ctx, req)
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: responseData(reply),
	}, nil
}

func (h *Handler) runDeferred(ctx context.Context, interaction *discordgo.Interaction, req *commands.Request) {
	h.pending.Add(1)
	go func() {
		defer h.pending.Done()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.timeout)
		defer cancel()

		reply := h.registry.Dispatch(ctx, req)
		if h.responder == nil {
			return
		}
		if err := h.responder.EditResponse(ctx, interaction, webhookEdit(reply)); err != nil {
			h.logger.ErrorWithContext(ctx, "failed to deliver follow-up",
				"name", req.Name,
				"error", err,
			)
		}
	}()
}

// Wait blocks until every deferred interaction has finished.
func (h *Handler) Wait() {
	h.pending.Wait()
}
