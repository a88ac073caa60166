package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/comanda-app/api/internal/client"
	"github.com/comanda-app/api/internal/config"
	"github.com/comanda-app/api/internal/logger"
	"github.com/comanda-app/api/internal/session"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	apiURL           string
	sessionFile      string
	refreshInterval  time.Duration
	refreshThreshold time.Duration
	settleDelay      time.Duration
	verbose          bool

	rootCmd = &cobra.Command{
		Use:   "comanda",
		Short: "Command-line client for the comanda ordering API",
		Long: `comanda signs staff in against a comanda API, lists and advances orders,
finalizes payments and follows the realtime order board of a company.`,
		SilenceUsage: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", envOr("COMANDA_API", "http://localhost:8081"), "API base URL")
	rootCmd.PersistentFlags().StringVar(&sessionFile, "session-file", envOr("COMANDA_SESSION_FILE", session.DefaultPath()), "Where the session is stored")
	rootCmd.PersistentFlags().DurationVar(&refreshInterval, "refresh-interval", session.DefaultRefreshInterval, "How often watch checks the session for expiry")
	rootCmd.PersistentFlags().DurationVar(&refreshThreshold, "refresh-threshold", session.DefaultRefreshThreshold, "Refresh sessions expiring within this window")
	rootCmd.PersistentFlags().DurationVar(&settleDelay, "settle-delay", session.DefaultSettleDelay, "Wait before routing after sign-in")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug output to stderr")

	rootCmd.AddCommand(loginCmd, logoutCmd, sessionCmd, ordersCmd, orderStatusCmd, payCmd, tablesCmd, watchCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app bundles what every command needs.
type app struct {
	api     *client.Client
	manager *session.Manager
	log     *zap.Logger
}

func newApp(cmd *cobra.Command) (*app, error) {
	level := "warn"
	if verbose {
		level = "debug"
	}
	log, err := logger.New(config.LoggerConfig{Level: level, Format: "console", Output: "stderr"})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	var manager *session.Manager
	api, err := client.New(apiURL, client.WithTokenSource(func() string { return manager.AccessToken() }))
	if err != nil {
		return nil, err
	}

	stderr := cmd.ErrOrStderr()
	manager = session.NewManager(api, session.NewFileStore(sessionFile), session.Options{
		SettleDelay: settleDelay,
		Logger:      log,
		Notify:      func(msg string) { fmt.Fprintln(stderr, msg) },
	})
	if err := manager.Init(cmd.Context()); err != nil {
		return nil, err
	}
	return &app{api: api, manager: manager, log: log}, nil
}

// requireSession returns the active session, refreshing it first when it
// is about to expire.
func (a *app) requireSession(ctx context.Context) (*session.Session, error) {
	if a.manager.Current() == nil {
		return nil, errors.New("not signed in, run: comanda login")
	}
	session.NewRefresher(a.manager, refreshInterval, refreshThreshold).Check(ctx)

	cur := a.manager.Current()
	if cur == nil {
		return nil, errors.New(session.MessageSessionExpired)
	}
	return cur, nil
}

// apiError signs out on authorization failures before returning err.
func (a *app) apiError(ctx context.Context, err error) error {
	if a.manager.HandleAuthError(ctx, err) {
		return errors.New(session.MessageSessionExpired)
	}
	return err
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
