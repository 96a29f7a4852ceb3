package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/user/termpad/internal/config"
	"github.com/user/termpad/internal/db"
	"github.com/user/termpad/internal/hub"
	"github.com/user/termpad/internal/profile"
	"github.com/user/termpad/internal/pty"
	"github.com/user/termpad/internal/server"
	"github.com/user/termpad/internal/watch"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if cfg.PrintToken {
		fmt.Println(cfg.Token)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.Open(ctx, filepath.Join(cfg.DataDir, "termpad.db"))
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer database.Close()
	history := db.NewSessionLogRepo(database.SQL())

	profiles, err := profile.NewStore(cfg.ProfileDir)
	if err != nil {
		slog.Error("failed to load watch profiles", "error", err)
		os.Exit(1)
	}

	ptys := pty.NewManager(cfg.Shell)
	defer ptys.Close()
	watches := watch.NewManager()
	defer watches.Close()

	h := hub.New(cfg.Token, ptys, watches, history, profiles)

	fmt.Printf("\ntermpad running at ws://127.0.0.1:%d/ws?token=%s\n\n", cfg.Port, cfg.Token)

	srv := server.New(cfg, h, history)
	if err := srv.Start(ctx); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}
