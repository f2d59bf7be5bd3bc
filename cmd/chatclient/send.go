package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rickgao/market-chat/internal/api"
)

func sendCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "send <text>",
		Short: "Send one message to the configured conversation",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}
			if err := requireUser(cfg); err != nil {
				return err
			}
			if cfg.Chat.ConversationID == "" {
				return errors.New("chat.conversation_id is required (set it in the config or pass --conversation)")
			}

			logger := newLogger(cfg)
			client := newAPIClient(cfg, logger)

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.API.Timeout)
			defer cancel()

			msg, err := client.SendMessage(ctx, cfg.Chat.ConversationID, cfg.Chat.UserID, strings.Join(args, " "))
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "sent %s\n", formatMessage(msg))
			return nil
		},
	}
}

func conversationsCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "conversations",
		Short: "List the conversations of the configured user",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}
			if err := requireUser(cfg); err != nil {
				return err
			}

			logger := newLogger(cfg)
			client := newAPIClient(cfg, logger)

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.API.Timeout)
			defer cancel()

			convs, err := client.ListConversations(ctx, cfg.Chat.UserID)
			if err != nil {
				return err
			}

			printConversations(cmd.OutOrStdout(), convs)
			return nil
		},
	}
}

func printConversations(out io.Writer, convs []api.Conversation) {
	if len(convs) == 0 {
		fmt.Fprintln(out, "no conversations")
		return
	}
	for _, c := range convs {
		fmt.Fprintf(out, "%-8s %-30s buyer=%s seller=%s  %s\n",
			c.ID, c.ListingName, c.BuyerID, c.SellerID, c.LastMessage)
	}
}
