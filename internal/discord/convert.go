package discord

import (
	"fmt"
	"strconv"

	"github.com/bwmarrin/discordgo"
	"github.com/pokedi/edfc/internal/commands"
)

const (
	maxButtonsPerRow = 5
	maxRows          = 5
	maxSelectOptions = 25
)

func toRequest(i *discordgo.Interaction) (*commands.Request, error) {
	req := &commands.Request{UserID: userID(i), Options: make(map[string]string)}
	if req.UserID == "" {
		return nil, fmt.Errorf("interaction %s has no user", i.ID)
	}

	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		data := i.ApplicationCommandData()
		req.Kind = commands.KindCommand
		req.Name = data.Name
		for _, opt := range data.Options {
			req.Options[opt.Name] = optionString(opt.Value)
		}
	case discordgo.InteractionMessageComponent:
		data := i.MessageComponentData()
		req.Kind = commands.KindComponent
		req.Name = data.CustomID
		req.Values = data.Values
	default:
		return nil, fmt.Errorf("unsupported interaction type %d", i.Type)
	}
	return req, nil
}

// userID is the member's user in guilds and the plain user in DMs.
func userID(i *discordgo.Interaction) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

// optionString renders an option value the way it was typed. JSON numbers
// arrive as float64.
func optionString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}

func responseData(reply *commands.Reply) *discordgo.InteractionResponseData {
	data := &discordgo.InteractionResponseData{
		Content:    reply.Content,
		Embeds:     embeds(reply),
		Components: components(reply),
	}
	if reply.Ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	return data
}

// webhookEdit replaces the deferred placeholder. Empty lists are sent so
// stale components from an earlier reply are cleared.
func webhookEdit(reply *commands.Reply) *discordgo.WebhookEdit {
	content := reply.Content
	e := embeds(reply)
	c := components(reply)
	if e == nil {
		e = []*discordgo.MessageEmbed{}
	}
	if c == nil {
		c = []discordgo.MessageComponent{}
	}
	return &discordgo.WebhookEdit{Content: &content, Embeds: &e, Components: &c}
}

func embeds(reply *commands.Reply) []*discordgo.MessageEmbed {
	if len(reply.Embeds) == 0 {
		return nil
	}
	out := make([]*discordgo.MessageEmbed, 0, len(reply.Embeds))
	for _, e := range reply.Embeds {
		embed := &discordgo.MessageEmbed{Title: e.Title, Description: e.Description, Color: e.Color}
		for _, f := range e.Fields {
			embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: f.Name, Value: f.Value, Inline: f.Inline})
		}
		out = append(out, embed)
	}
	return out
}

// components packs buttons into rows of five. Each select menu takes a row
// of its own.
func components(reply *commands.Reply) []discordgo.MessageComponent {
	var rows []discordgo.MessageComponent
	var buttons []discordgo.MessageComponent

	flush := func() {
		if len(buttons) > 0 {
			rows = append(rows, discordgo.ActionsRow{Components: buttons})
			buttons = nil
		}
	}

	for _, c := range reply.Components {
		switch c.Kind {
		case commands.ComponentSelect:
			flush()
			rows = append(rows, discordgo.ActionsRow{Components: []discordgo.MessageComponent{selectMenu(c)}})
		case commands.ComponentLinkButton:
			buttons = append(buttons, discordgo.Button{Label: c.Label, Style: discordgo.LinkButton, URL: c.URL})
		default:
			buttons = append(buttons, discordgo.Button{Label: c.Label, Style: discordgo.SecondaryButton, CustomID: c.CustomID})
		}
		if len(buttons) == maxButtonsPerRow {
			flush()
		}
	}
	flush()

	if len(rows) > maxRows {
		rows = rows[:maxRows]
	}
	return rows
}

func selectMenu(c commands.Component) discordgo.SelectMenu {
	menu := discordgo.SelectMenu{
		MenuType:    discordgo.StringSelectMenu,
		CustomID:    c.CustomID,
		Placeholder: c.Label,
	}
	for i, opt := range c.Options {
		if i == maxSelectOptions {
			break
		}
		menu.Options = append(menu.Options, discordgo.SelectMenuOption{Label: opt.Label, Value: opt.Value, Default: opt.Default})
	}
	return menu
}
