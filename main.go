package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/nconklindev/harmony/internal/api"
	"github.com/nconklindev/harmony/internal/auth"
	"github.com/nconklindev/harmony/internal/config"
	"github.com/nconklindev/harmony/internal/logging"
	"github.com/nconklindev/harmony/internal/mapping"
	"github.com/nconklindev/harmony/internal/store"
	"github.com/nconklindev/harmony/internal/ui"
	"github.com/nconklindev/harmony/internal/workspace"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cmd := ""
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	if cmd == "--version" || cmd == "-v" {
		fmt.Printf("harmony %s\ncommit: %s\nbuilt: %s\n", version, commit, date)
		os.Exit(0)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	switch cmd {
	case "serve":
		err = serve(cfg)
	case "migrate":
		err = migrate(cfg)
	case "":
		err = runTUI(cfg)
	default:
		err = fmt.Errorf("unknown command %q (want serve, migrate or --version)", cmd)
	}
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func newWorkspace(cfg *config.Config, db *store.Postgres, logger *zap.Logger) (*workspace.Workspace, error) {
	opts := workspace.Options{
		Fields: cfg.Fields,
		Sheet:  cfg.ExportSheet,
		Logger: logger,
	}
	if cfg.RulesFile != "" {
		rules, err := mapping.LoadRules(cfg.RulesFile)
		if err != nil {
			return nil, err
		}
		opts.Rules = &rules
	}
	if db != nil {
		opts.Inserter = db
	}
	return workspace.New(opts), nil
}

func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*store.Postgres, error) {
	if cfg.Postgres == nil {
		logger.Info("Persistence disabled, no database configured")
		return nil, nil
	}
	return store.Open(ctx, cfg.Postgres, logger)
}

func serve(cfg *config.Config) error {
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}

	var roles auth.RoleResolver = auth.Static{All: cfg.Elevated}
	var candidates api.CandidateLister
	if db != nil {
		defer db.Close()
		roles = db
		candidates = db
	}

	ws, err := newWorkspace(cfg, db, logger)
	if err != nil {
		return err
	}

	handler := api.NewHandler(ws, candidates, cfg.ExportFile, logger)
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.NewRouter(handler, roles, cfg.CORSOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting API server",
			zap.String("addr", cfg.Addr),
			zap.Strings("cors_origins", cfg.CORSOrigins),
			zap.Bool("persistence", db != nil))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down API server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func migrate(cfg *config.Config) error {
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Postgres == nil {
		return errors.New("no database configured: set DATABASE_URL or POSTGRES_DB")
	}

	ctx := context.Background()
	db, err := store.Open(ctx, cfg.Postgres, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		return err
	}
	logger.Info("Schema up to date")
	return nil
}

func runTUI(cfg *config.Config) error {
	logger, err := logging.File(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx := context.Background()
	db, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	actor := auth.Actor{ID: auth.ParseID(cfg.ActorID), Elevated: cfg.Elevated}
	if db != nil && !actor.Elevated {
		actor = auth.Resolve(ctx, db, actor.ID, logger)
	}

	ws, err := newWorkspace(cfg, db, logger)
	if err != nil {
		return err
	}

	model := ui.InitialModel(ui.Options{
		Workspace:  ws,
		Actor:      actor,
		ExportPath: cfg.ExportFile,
		CanSave:    db != nil,
		Logger:     logger,
	})

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion())
	_, err = p.Run()
	return err
}
