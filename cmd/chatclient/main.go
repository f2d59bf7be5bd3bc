package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/rickgao/market-chat/internal/api"
	"github.com/rickgao/market-chat/internal/config"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath   string
	envFile      string
	logLevel     string
	conversation string
	user         string
}

func main() {
	var flags globalFlags

	rootCmd := &cobra.Command{
		Use:   "chatclient",
		Short: "Marketplace chat client",
		Long: `chatclient joins a marketplace conversation over the realtime chat socket.

It keeps the connection alive with heartbeats, reconnects with backoff
after failures, and sends messages through the HTTP API.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "configs/chatclient.yaml", "path to config file")
	pf.StringVar(&flags.envFile, "env-file", ".env", "dotenv file loaded before the config")
	pf.StringVar(&flags.logLevel, "log-level", "", "override log.level (debug, info, warn, error)")
	pf.StringVar(&flags.conversation, "conversation", "", "override chat.conversation_id")
	pf.StringVar(&flags.user, "user", "", "override chat.user_id")

	rootCmd.AddCommand(
		listenCmd(&flags),
		sendCmd(&flags),
		conversationsCmd(&flags),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the dotenv file and the config, applies flag overrides
// and validates. A missing config file at the default path falls back to
// defaults.
func loadConfig(cmd *cobra.Command, flags *globalFlags) (*config.ClientConfig, error) {
	if err := godotenv.Load(flags.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load env file: %w", err)
	}

	cfg, err := config.LoadWithDefaults(flags.configPath)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) || cmd.Flags().Changed("config") {
			return nil, err
		}
		cfg = config.Default()
	}

	if flags.logLevel != "" {
		cfg.Log.Level = flags.logLevel
	}
	if flags.conversation != "" {
		cfg.Chat.ConversationID = flags.conversation
	}
	if flags.user != "" {
		cfg.Chat.UserID = flags.user
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// newLogger installs a text handler at the configured level.
func newLogger(cfg *config.ClientConfig) *slog.Logger {
	level, _ := config.ParseLevel(cfg.Log.Level)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	return logger
}

func newAPIClient(cfg *config.ClientConfig, logger *slog.Logger) *api.Client {
	return api.NewClient(
		cfg.API.BaseURL,
		cfg.API.APIKey,
		api.WithLogger(logger),
		api.WithTimeout(cfg.API.Timeout),
		api.WithRetries(cfg.API.MaxRetries, cfg.API.RetryBackoff),
		api.WithSendRate(cfg.API.SendRate, cfg.API.SendBurst),
	)
}

func requireUser(cfg *config.ClientConfig) error {
	if cfg.Chat.UserID == "" {
		return errors.New("chat.user_id is required (set it in the config or pass --user)")
	}
	return nil
}
