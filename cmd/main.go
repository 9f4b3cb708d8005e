package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/tinoosan/bankledger/internal/audit"
	"github.com/tinoosan/bankledger/internal/auth"
	"github.com/tinoosan/bankledger/internal/config"
	httpapi "github.com/tinoosan/bankledger/internal/httpapi/v1"
	"github.com/tinoosan/bankledger/internal/ledger"
	"github.com/tinoosan/bankledger/internal/service/transfer"
	"github.com/tinoosan/bankledger/internal/storage/memory"
	pgstore "github.com/tinoosan/bankledger/internal/storage/postgres"
)

// Dev seed identities.
const (
	devCustomerID int64 = 1
	devPayeeID    int64 = 2
	devAdminID    int64 = 99
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(2)
	}
	logger := buildLogger(cfg)
	slog.SetDefault(logger)

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open store", "err", err)
		os.Exit(1)
	}
	defer closeStore()

	notifier, closeNotifier := buildNotifier(cfg, logger)

	if cfg.DevSeed || cfg.DatabaseURL == "" {
		if err := devSeed(ctx, cfg, store, logger); err != nil {
			logger.Error("dev seed failed", "err", err)
		}
	}

	opts := []httpapi.Option{httpapi.WithMaxInflight(cfg.MaxInflight)}
	if cfg.JWTSecret != "" {
		opts = append(opts, httpapi.WithVerifier(auth.Verifier{Secret: []byte(cfg.JWTSecret), Issuer: cfg.JWTIssuer, Audience: cfg.JWTAudience}))
		logger.Info("auth mode: HS256 bearer tokens")
	} else {
		logger.Warn("auth mode: trusted headers (JWT_HS256_SECRET not set)")
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.New(store, notifier, logger, opts...).Handler(),
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.LockTimeout + 10*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("accounts service listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		logger.Error("server error", "err", err)
	}

	ctxShutdown, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctxShutdown); err != nil {
		logger.Error("server shutdown error", "err", err)
	}
	// Drain queued audit events after the last request has finished.
	closeNotifier(ctxShutdown)
}

// openStore picks Postgres when DATABASE_URL is set, otherwise memory.
func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (httpapi.Store, func(), error) {
	if cfg.DatabaseURL == "" {
		logger.Info("storage backend: memory")
		return memory.New(memory.WithLockTimeout(cfg.LockTimeout)), func() {}, nil
	}
	if cfg.DBMigrate {
		if err := pgstore.Migrate(cfg.DatabaseURL); err != nil {
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
		logger.Info("migrations applied")
	}
	pg, err := pgstore.Open(ctx, cfg.DatabaseURL, pgstore.WithLockTimeout(cfg.LockTimeout))
	if err != nil {
		return nil, nil, err
	}
	logger.Info("storage backend: postgres")
	return pg, pg.Close, nil
}

// buildNotifier returns the audit publisher and a func that drains it and
// closes the sink. AUDIT_SINK=none discards events.
func buildNotifier(cfg config.Config, logger *slog.Logger) (audit.Publisher, func(context.Context)) {
	opts := []audit.Option{
		audit.WithTimeout(cfg.AuditTimeout),
		audit.WithAttempts(cfg.AuditAttempts),
		audit.WithBuffer(cfg.AuditBuffer),
	}
	var (
		sink      audit.Sink
		closeSink = func() error { return nil }
	)
	switch cfg.AuditSink {
	case config.AuditSinkNone:
		logger.Info("audit sink: none")
		return audit.Discard, func(context.Context) {}
	case config.AuditSinkKafka:
		k := audit.NewKafkaSink(cfg.KafkaBrokers, cfg.AuditTopic)
		sink, closeSink = k, k.Close
		logger.Info("audit sink: kafka", "brokers", cfg.KafkaBrokers, "topic", cfg.AuditTopic)
	default:
		sink = audit.NewLogSink(logger)
		logger.Info("audit sink: log")
	}
	n := audit.NewNotifier(sink, logger, opts...)
	return n, func(ctx context.Context) {
		if err := n.Close(ctx); err != nil {
			logger.Warn("audit queue not drained", "err", err)
		}
		if err := closeSink(); err != nil {
			logger.Warn("audit sink close", "err", err)
		}
	}
}

// devSeed opens a few funded accounts for local use. Funding goes through the
// engine so every opening balance has its ledger row.
func devSeed(ctx context.Context, cfg config.Config, store httpapi.Store, logger *slog.Logger) error {
	engine := transfer.New(store, nil)
	type seed struct {
		owner int64
		typ   ledger.AccountType
		cents int64
	}
	seeds := []seed{
		{devCustomerID, ledger.AccountTypeChecking, 100000},
		{devCustomerID, ledger.AccountTypeSavings, 0},
		{devPayeeID, ledger.AccountTypeChecking, 25000},
	}
	accs := make([]ledger.Account, 0, len(seeds))
	for _, sd := range seeds {
		a, err := store.CreateAccount(ctx, sd.owner, sd.typ)
		if err != nil {
			return err
		}
		if sd.cents > 0 {
			if _, err := engine.AdminTopUp(ctx, transfer.TopUpRequest{ActorID: devAdminID, AccountID: a.ID, Amount: ledger.MustAmount(sd.cents), Description: "Dev seed"}); err != nil {
				return err
			}
		}
		accs = append(accs, a)
	}
	logger.Info("DEV seed", "customer_id", devCustomerID, "payee_id", devPayeeID, "admin_id", devAdminID, "accounts", len(accs))
	printDevSeedBanner(cfg, accs)
	return nil
}

// printDevSeedBanner prints a simple banner to stdout for easy copy/paste of IDs
func printDevSeedBanner(cfg config.Config, accs []ledger.Account) {
	fmt.Println("==================== DEV SEED ====================")
	for _, a := range accs {
		fmt.Printf("user %d  %-8s account_id=%d  number=%s\n", a.OwnerID, a.Type, a.ID, a.Number)
	}
	if cfg.JWTSecret == "" {
		fmt.Printf("headers: X-User-ID: %d  X-Roles: customer   (admin: X-User-ID: %d  X-Roles: admin)\n", devCustomerID, devAdminID)
	} else {
		exp := time.Now().Add(24 * time.Hour).Unix()
		for _, p := range []struct {
			id   int64
			role string
		}{{devCustomerID, auth.RoleCustomer}, {devAdminID, auth.RoleAdmin}} {
			c := auth.Claims{Issuer: cfg.JWTIssuer, UserID: p.id, Roles: []string{p.role}, ExpiresAt: exp}
			if cfg.JWTAudience != "" {
				c.Audience = cfg.JWTAudience
			}
			tok, err := auth.Sign([]byte(cfg.JWTSecret), c)
			if err == nil {
				fmt.Printf("%s token: %s\n", p.role, tok)
			}
		}
	}
	fmt.Println("==================================================")
}

// parseLogLevel maps LOG_LEVEL values to slog.Leveler
func parseLogLevel(s string) slog.Leveler {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error", "err":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func buildLogger(cfg config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.LogLevel)}
	if cfg.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
