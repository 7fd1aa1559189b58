package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	auth "github.com/goliatone/go-auth-gate"
	"github.com/joho/godotenv"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "authgate:", err)
		os.Exit(1)
	}
}

func run() error {
	// .env is optional, real environment wins
	_ = godotenv.Load(".env")

	// no secret, no server
	secret, err := auth.LoadSecret(os.Getenv)
	if err != nil {
		return err
	}

	cfg, err := auth.LoadConfig("", os.Getenv)
	if err != nil {
		return err
	}

	zl, err := auth.BuildZapLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer zl.Sync()
	logger := auth.NewZapLogger(zl)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := auth.OpenSQLite(cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer db.Close()

	users := auth.NewUsersRepository(db)
	if err := users.EnsureSchema(ctx); err != nil {
		return err
	}

	for _, seed := range cfg.Database.SeedUsers {
		if _, err := users.GetOrRegister(ctx, seed.Username, seed.Password, seed.Role); err != nil {
			return err
		}
		logger.Info("seed user ready", "username", seed.Username, "role", seed.Role)
	}

	app, err := newApp(deps{
		cfg:    cfg,
		secret: secret,
		store:  users,
		logger: logger,
	})
	if err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			logger.Error("shutdown error", "error", err)
		}
	}()

	logger.Info("listening", "address", cfg.Server.Address)
	return app.Listen(cfg.Server.Address)
}
