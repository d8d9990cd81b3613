package cli

import (
	"fmt"
	"os"
	"runtime"

	"github.com/pokedi/edfc/internal/config"
	apperrors "github.com/pokedi/edfc/internal/errors"
	"github.com/spf13/cobra"
)

// Version is set at build time with -ldflags "-X ...cli.Version=...".
var (
	Version   = "dev"
	BuildDate = "unknown"
)

// GlobalFlags contains global flags available for all commands
type GlobalFlags struct {
	Config  string
	Verbose bool
	JSON    bool
}

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "edfc",
	Short: "EDFC - Elite Dangerous Frontier CAPI bot for Discord",
	Long: `EDFC links Discord users to their Frontier accounts and serves
Elite Dangerous companion API data through slash commands.

Usage:
  edfc [command] [flags]

Available Commands:
  serve      Start the HTTP server (callback and interactions)
  check      Check configuration, database and cache
  accounts   Inspect or unlink a user's Frontier accounts
  sessions   Maintain pending login sessions
  commands   Export or register Discord slash commands
  version    Print version information

Use "edfc [command] --help" for more information about a command.`,
	SilenceUsage: true,
}

var globalFlags GlobalFlags

// InitRoot initializes the root command with global flags
func InitRoot() {
	RootCmd.PersistentFlags().StringVar(&globalFlags.Config, "config", config.PathFromEnv(), "Path to configuration file")
	RootCmd.PersistentFlags().BoolVarP(&globalFlags.Verbose, "verbose", "v", false, "Enable verbose output")
	RootCmd.PersistentFlags().BoolVar(&globalFlags.JSON, "json", false, "Output in JSON format")

	RootCmd.AddCommand(versionCmd)
}

// GetGlobalFlags returns the global flags
func GetGlobalFlags() GlobalFlags {
	return globalFlags
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of EDFC",
	Run: func(cmd *cobra.Command, args []string) {
		info := GetVersionInfo()
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "EDFC Version:", info.Version)
		fmt.Fprintln(out, "Go Version:", info.GoVersion)
		fmt.Fprintln(out, "OS/Arch:", info.OS+"/"+info.Arch)
		fmt.Fprintln(out, "Build Date:", info.BuildDate)
	},
}

// VersionInfo contains version information
type VersionInfo struct {
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
	BuildDate string `json:"build_date"`
}

// GetVersionInfo returns version information
func GetVersionInfo() VersionInfo {
	return VersionInfo{
		Version:   Version,
		GoVersion: runtime.Version(),
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
		BuildDate: BuildDate,
	}
}

// loadConfig loads the configuration named by --config. A path given
// explicitly on the command line must exist; the default path may be absent.
func loadConfig(cmd *cobra.Command) (*config.Loader, *config.Config, error) {
	path := globalFlags.Config
	if flag := cmd.Flags().Lookup("config"); flag != nil && flag.Changed {
		if _, err := os.Stat(path); err != nil {
			return nil, nil, &apperrors.ErrConfigNotFound{Path: path}
		}
	}

	loader := config.NewLoader(path)
	cfg, err := loader.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return loader, cfg, nil
}
