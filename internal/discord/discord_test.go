package discord

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/pokedi/edfc/internal/accounts"
	"github.com/pokedi/edfc/internal/cache"
	"github.com/pokedi/edfc/internal/commands"
	"github.com/pokedi/edfc/internal/logging"
	"github.com/pokedi/edfc/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingResponder struct {
	mu    sync.Mutex
	edits []*discordgo.WebhookEdit
	ids   []string
}

func (r *recordingResponder) EditResponse(_ context.Context, i *discordgo.Interaction, edit *discordgo.WebhookEdit) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.edits = append(r.edits, edit)
	r.ids = append(r.ids, i.ID)
	return nil
}

func newTestHandler(t *testing.T) (*Handler, *recordingResponder, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	logger := logging.NewLogger(logging.WithOutput(io.Discard))
	reg := commands.NewRegistry(accounts.NewRegistry(store.NewMemoryStore(), cache.NewMemoryCache(), logger), logger)
	reg.Register(&commands.Command{
		Name:        "echo",
		Description: "Echo the text option",
		Options:     []commands.OptionSpec{{Name: "text", Description: "Text", Required: true}, {Name: "count", Description: "Count", Kind: commands.OptionInteger}},
		Handler: commands.HandlerFunc(func(_ context.Context, req *commands.Request) (*commands.Reply, error) {
			return &commands.Reply{Content: req.Option("text") + "/" + req.Option("count") + "/" + req.UserID, Ephemeral: true}, nil
		}),
	})
	reg.Register(&commands.Command{
		Name:     "slow",
		Deferred: true,
		Handler: commands.HandlerFunc(func(_ context.Context, req *commands.Request) (*commands.Reply, error) {
			return &commands.Reply{Embeds: []commands.Embed{{Title: "slow done", Fields: []commands.Field{{Name: "a", Value: "b"}}}}}, nil
		}),
	})

	responder := &recordingResponder{}
	h, err := NewHandler(Config{PublicKey: hex.EncodeToString(pub), FollowupTimeout: time.Second}, reg, responder, logger, nil)
	require.NoError(t, err)
	return h, responder, priv
}

func signedRequest(priv ed25519.PrivateKey, body string) *http.Request {
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	sig := ed25519.Sign(priv, []byte(ts+body))
	req := httptest.NewRequest(http.MethodPost, "/edfc/interactions", bytes.NewBufferString(body))
	req.Header.Set("X-Signature-Ed25519", hex.EncodeToString(sig))
	req.Header.Set("X-Signature-Timestamp", ts)
	return req
}

func TestParsePublicKey(t *testing.T) {
	_, err := ParsePublicKey("zz")
	assert.Error(t, err)
	_, err = ParsePublicKey("abcd")
	assert.Error(t, err)

	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	key, err := ParsePublicKey(hex.EncodeToString(pub))
	require.NoError(t, err)
	assert.Equal(t, pub, key)
}

func TestVerify(t *testing.T) {
	h, _, priv := newTestHandler(t)
	body := `{"type":1}`

	req := signedRequest(priv, body)
	assert.True(t, h.Verify(req))
	read, err := io.ReadAll(req.Body)
	require.NoError(t, err)
	assert.Equal(t, body, string(read), "body must remain readable")

	_, other, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	assert.False(t, h.Verify(signedRequest(other, body)))

	unsigned := httptest.NewRequest(http.MethodPost, "/edfc/interactions", bytes.NewBufferString(body))
	assert.False(t, h.Verify(unsigned))
}

func TestHandle_Ping(t *testing.T) {
	h, _, _ := newTestHandler(t)
	resp, err := h.Handle(context.Background(), []byte(`{"id":"1","type":1}`))
	require.NoError(t, err)
	assert.Equal(t, discordgo.InteractionResponsePong, resp.Type)
}

func TestHandle_InvalidPayload(t *testing.T) {
	h, _, _ := newTestHandler(t)
	_, err := h.Handle(context.Background(), []byte(`not json`))
	assert.Error(t, err)

	_, err = h.Handle(context.Background(), []byte(`{"id":"1","type":2,"data":{"name":"echo","type":1}}`))
	assert.Error(t, err, "interaction without a user")
}

func TestHandle_ImmediateCommand(t *testing.T) {
	h, responder, _ := newTestHandler(t)
	body := `{"id":"i1","application_id":"app","type":2,"token":"tok",
		"member":{"user":{"id":"u1"}},
		"data":{"id":"c1","name":"echo","type":1,"options":[
			{"name":"text","type":3,"value":"hi"},
			{"name":"count","type":4,"value":2025}]}}`

	resp, err := h.Handle(context.Background(), []byte(body))
	require.NoError(t, err)
	assert.Equal(t, discordgo.InteractionResponseChannelMessageWithSource, resp.Type)
	require.NotNil(t, resp.Data)
	assert.Equal(t, "hi/2025/u1", resp.Data.Content)
	assert.Equal(t, discordgo.MessageFlagsEphemeral, resp.Data.Flags)
	assert.Empty(t, responder.edits)
}

func TestHandle_UnknownCommandRepliesWithError(t *testing.T) {
	h, _, _ := newTestHandler(t)
	body := `{"id":"i1","type":2,"user":{"id":"u1"},"data":{"id":"c1","name":"warp","type":1}}`

	resp, err := h.Handle(context.Background(), []byte(body))
	require.NoError(t, err)
	require.Len(t, resp.Data.Embeds, 1)
	assert.Equal(t, "Unknown command.", resp.Data.Embeds[0].Description)
}

func TestHandle_DeferredCommand(t *testing.T) {
	h, responder, _ := newTestHandler(t)
	body := `{"id":"i2","application_id":"app","type":2,"token":"tok","user":{"id":"u1"},
		"data":{"id":"c2","name":"slow","type":1}}`

	resp, err := h.Handle(context.Background(), []byte(body))
	require.NoError(t, err)
	assert.Equal(t, discordgo.InteractionResponseDeferredChannelMessageWithSource, resp.Type)

	h.Wait()
	require.Len(t, responder.edits, 1)
	assert.Equal(t, "i2", responder.ids[0])
	edit := responder.edits[0]
	require.NotNil(t, edit.Embeds)
	require.Len(t, *edit.Embeds, 1)
	assert.Equal(t, "slow done", (*edit.Embeds)[0].Title)
	require.NotNil(t, edit.Components)
	assert.Empty(t, *edit.Components)
}

func TestHandle_DeferredComponentUpdatesMessage(t *testing.T) {
	h, responder, _ := newTestHandler(t)
	body := `{"id":"i3","type":3,"token":"tok","user":{"id":"u1"},
		"data":{"custom_id":"action_slow","component_type":2}}`

	resp, err := h.Handle(context.Background(), []byte(body))
	require.NoError(t, err)
	assert.Equal(t, discordgo.InteractionResponseDeferredMessageUpdate, resp.Type)

	h.Wait()
	assert.Len(t, responder.edits, 1)
}

func TestComponents_RowPacking(t *testing.T) {
	reply := &commands.Reply{}
	for i := 0; i < 7; i++ {
		reply.Components = append(reply.Components, commands.Component{Kind: commands.ComponentButton, CustomID: "b" + strconv.Itoa(i), Label: "B"})
	}
	reply.Components = append(reply.Components, commands.Component{
		Kind:     commands.ComponentSelect,
		CustomID: "profile_select_account",
		Label:    "Select account",
		Options:  []commands.SelectOption{{Label: "A", Value: "1", Default: true}, {Label: "B", Value: "2"}},
	})
	reply.Components = append(reply.Components, commands.Component{Kind: commands.ComponentLinkButton, Label: "Open", URL: "https://example.test"})

	rows := components(reply)
	require.Len(t, rows, 4)
	assert.Len(t, rows[0].(discordgo.ActionsRow).Components, 5)
	assert.Len(t, rows[1].(discordgo.ActionsRow).Components, 2)

	menu := rows[2].(discordgo.ActionsRow).Components[0].(discordgo.SelectMenu)
	assert.Equal(t, "profile_select_account", menu.CustomID)
	assert.Equal(t, "Select account", menu.Placeholder)
	require.Len(t, menu.Options, 2)
	assert.True(t, menu.Options[0].Default)

	link := rows[3].(discordgo.ActionsRow).Components[0].(discordgo.Button)
	assert.Equal(t, discordgo.LinkButton, link.Style)
	assert.Equal(t, "https://example.test", link.URL)
	assert.Empty(t, link.CustomID)
}

func TestOptionString(t *testing.T) {
	assert.Equal(t, "2025", optionString(float64(2025)))
	assert.Equal(t, "true", optionString(true))
	assert.Equal(t, "x", optionString("x"))
	assert.Equal(t, "", optionString(nil))
}

func TestDefinitions(t *testing.T) {
	h, _, _ := newTestHandler(t)
	defs := Definitions(h.registry)
	require.Len(t, defs, 2)
	assert.Equal(t, "echo", defs[0].Name)
	require.Len(t, defs[0].Options, 2)
	assert.Equal(t, discordgo.ApplicationCommandOptionString, defs[0].Options[0].Type)
	assert.True(t, defs[0].Options[0].Required)
	assert.Equal(t, discordgo.ApplicationCommandOptionInteger, defs[0].Options[1].Type)
	assert.Equal(t, "slow", defs[1].Name)
}
