package discord

import (
	"github.com/bwmarrin/discordgo"
	"github.com/pokedi/edfc/internal/commands"
)

// Definitions builds the application command payloads for registration.
func Definitions(registry *commands.Registry) []*discordgo.ApplicationCommand {
	cmds := registry.Commands()
	out := make([]*discordgo.ApplicationCommand, 0, len(cmds))
	for _, cmd := range cmds {
		def := &discordgo.ApplicationCommand{
			Name:        cmd.Name,
			Description: cmd.Description,
		}
		for _, opt := range cmd.Options {
			def.Options = append(def.Options, &discordgo.ApplicationCommandOption{
				Type:        optionType(opt.Kind),
				Name:        opt.Name,
				Description: opt.Description,
				Required:    opt.Required,
			})
		}
		out = append(out, def)
	}
	return out
}

func optionType(kind commands.OptionKind) discordgo.ApplicationCommandOptionType {
	switch kind {
	case commands.OptionInteger:
		return discordgo.ApplicationCommandOptionInteger
	case commands.OptionBoolean:
		return discordgo.ApplicationCommandOptionBoolean
	default:
		return discordgo.ApplicationCommandOptionString
	}
}
