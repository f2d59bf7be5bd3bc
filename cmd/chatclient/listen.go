package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/market-chat/internal/api"
	"github.com/rickgao/market-chat/internal/backoff"
	"github.com/rickgao/market-chat/internal/codec"
	"github.com/rickgao/market-chat/internal/config"
	"github.com/rickgao/market-chat/internal/connection"
	"github.com/rickgao/market-chat/internal/heartbeat"
	"github.com/rickgao/market-chat/internal/metrics"
	"github.com/rickgao/market-chat/internal/session"
	"github.com/rickgao/market-chat/internal/version"
)

func listenCmd(flags *globalFlags) *cobra.Command {
	var (
		interactive bool
		noHistory   bool
		noServer    bool
	)

	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Join a conversation and print messages as they arrive",
		Long: `listen connects to the chat socket of the configured conversation and
prints every new message. With --interactive, lines read from stdin are
sent as messages. Health and Prometheus metrics are served on metrics.addr.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}
			if err := requireUser(cfg); err != nil {
				return err
			}
			logger := newLogger(cfg)

			return runListen(cmd.Context(), cfg, logger, cmd.OutOrStdout(), listenOptions{
				interactive: interactive,
				history:     !noHistory,
				serve:       !noServer,
			})
		},
	}

	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "send lines read from stdin")
	cmd.Flags().BoolVar(&noHistory, "no-history", false, "skip loading conversation history")
	cmd.Flags().BoolVar(&noServer, "no-server", false, "do not serve /health and /metrics")

	return cmd
}

type listenOptions struct {
	interactive bool
	history     bool
	serve       bool
}

func runListen(parent context.Context, cfg *config.ClientConfig, logger *slog.Logger, out io.Writer, opts listenOptions) error {
	logger.Info("starting chat client",
		"version", version.Version,
		"commit", version.Commit,
		"api_url", cfg.API.BaseURL,
	)

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := newAPIClient(cfg, logger)

	if cfg.Chat.ConversationID == "" {
		return pickConversation(ctx, client, cfg.Chat.UserID, out)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	mgr := connection.NewManager(
		managerConfig(cfg, m),
		connection.NewWebSocketDialer(connection.DialerConfig{
			HandshakeTimeout: cfg.Connection.ConnectTimeout,
			WriteTimeout:     cfg.Connection.WriteTimeout,
			ReadLimit:        connection.DefaultDialerConfig().ReadLimit,
			APIKey:           cfg.API.APIKey,
		}),
		client,
		printHandlers(out, logger),
		logger,
	)

	if opts.history {
		loadHistory(ctx, client, mgr, cfg.Chat.ConversationID, out, logger)
	}

	mgr.Connect(cfg.Chat.ConversationID, cfg.Chat.UserID)

	g, gctx := errgroup.WithContext(ctx)

	if opts.serve {
		server := &http.Server{
			Addr:              cfg.Metrics.Addr,
			Handler:           newRouter(mgr, registry, cfg.Metrics.Path),
			ReadHeaderTimeout: 5 * time.Second,
		}

		g.Go(func() error {
			logger.Info("starting health server", "addr", cfg.Metrics.Addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("health server: %w", err)
			}
			return nil
		})

		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})
	}

	if opts.interactive {
		// Scanner reads cannot be interrupted; the goroutine ends with the process.
		go readInput(gctx, os.Stdin, mgr, logger)
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down...")
		return mgr.Close()
	})

	err := g.Wait()
	logger.Info("chat client stopped")
	return err
}

func managerConfig(cfg *config.ClientConfig, m *metrics.Metrics) connection.Config {
	cc := cfg.Connection
	return connection.Config{
		BaseURL:        cfg.API.BaseURL,
		ConnectTimeout: cc.ConnectTimeout,
		Heartbeat: heartbeat.Config{
			ProbeInterval:     cc.ProbeInterval,
			AckTimeout:        cc.AckTimeout,
			KeepAliveInterval: cc.KeepAliveInterval,
		},
		Policy: backoff.Policy{
			Base:        cc.ReconnectBase,
			Max:         cc.ReconnectMax,
			MaxAttempts: cc.MaxAttempts,
		},
		Metrics: m,
	}
}

func printHandlers(out io.Writer, logger *slog.Logger) connection.Handlers {
	return connection.Handlers{
		OnMessage: func(msg codec.ChatMessage) {
			fmt.Fprintln(out, formatMessage(msg))
		},
		OnError: func(message string) {
			fmt.Fprintf(out, "! %s\n", message)
		},
		OnStateChange: func(old, new session.State) {
			logger.Info("connection state", "from", old, "to", new)
			if new == session.StateConnecting && old != session.StateIdle {
				fmt.Fprintln(out, "... reconnecting")
			}
		},
	}
}

func loadHistory(ctx context.Context, client historySource, mgr *connection.Manager, conversationID string, out io.Writer, logger *slog.Logger) {
	msgs, err := client.GetMessages(ctx, conversationID)
	if err != nil {
		logger.Warn("could not load history", "conversation", conversationID, "error", err)
		return
	}
	mgr.SeedHistory(msgs)
	for _, msg := range mgr.Messages() {
		fmt.Fprintln(out, formatMessage(msg))
	}
	logger.Info("history loaded", "messages", len(msgs))
}

type historySource interface {
	GetMessages(ctx context.Context, conversationID string) ([]codec.ChatMessage, error)
}

func readInput(ctx context.Context, in io.Reader, mgr *connection.Manager, logger *slog.Logger) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if ctx.Err() != nil {
			return
		}
		// Failures are already reported through OnError.
		if err := mgr.SendMessage(ctx, text); err != nil {
			logger.Debug("send failed", "error", err)
		}
	}
}

// pickConversation lists the user's conversations when none is configured.
func pickConversation(ctx context.Context, client *api.Client, userID string, out io.Writer) error {
	convs, err := client.ListConversations(ctx, userID)
	if err != nil {
		return err
	}
	printConversations(out, convs)
	return errors.New("no conversation selected (pass --conversation)")
}

func formatMessage(msg codec.ChatMessage) string {
	return fmt.Sprintf("[%s] %s: %s", msg.Timestamp.Local().Format("2006-01-02 15:04:05"), msg.SenderID, msg.Text)
}
