package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/pokedi/edfc/internal/commands"
	"github.com/pokedi/edfc/internal/discord"
	"github.com/spf13/cobra"
)

var discordCommandsCmd = &cobra.Command{
	Use:   "commands",
	Short: "Export or register Discord slash commands",
}

var commandsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Print the slash command definitions as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(discord.Definitions(definitionRegistry()))
	},
}

var commandsRegisterCmd = &cobra.Command{
	Use:   "register",
	Short: "Overwrite the application's slash commands",
	Long: `Overwrite the application's slash commands through the Discord API.

The bot token is read from --token or DISCORD_BOT_TOKEN. With --guild the
commands are registered for one guild, which takes effect immediately.`,
	RunE: runCommandsRegister,
}

var commandsFlags struct {
	Token   string
	GuildID string
}

func init() {
	commandsRegisterCmd.Flags().StringVar(&commandsFlags.Token, "token", os.Getenv("DISCORD_BOT_TOKEN"), "Bot token")
	commandsRegisterCmd.Flags().StringVar(&commandsFlags.GuildID, "guild", "", "Guild id for guild-scoped commands")
	discordCommandsCmd.AddCommand(commandsExportCmd, commandsRegisterCmd)
}

// definitionRegistry registers every command without services. Only the
// metadata is read.
func definitionRegistry() *commands.Registry {
	r := commands.NewRegistry(nil, nil)
	commands.RegisterAll(r, commands.Services{})
	return r
}

func runCommandsRegister(cmd *cobra.Command, args []string) error {
	_, cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if commandsFlags.Token == "" {
		return fmt.Errorf("a bot token is required (--token or DISCORD_BOT_TOKEN)")
	}
	if cfg.Discord.ApplicationID == "" {
		return fmt.Errorf("discord.application_id is required (DISCORD_APPLICATION_ID)")
	}

	registered, err := discord.RegisterCommands(cmd.Context(), commandsFlags.Token, cfg.Discord.ApplicationID, commandsFlags.GuildID, discord.Definitions(definitionRegistry()))
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Registered %d command(s)\n", len(registered))
	return nil
}
