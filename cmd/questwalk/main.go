package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukerupert/questwalk/internal/config"
	"github.com/dukerupert/questwalk/internal/database"
	"github.com/dukerupert/questwalk/internal/handler"
	"github.com/dukerupert/questwalk/internal/logging"
	"github.com/dukerupert/questwalk/internal/mission"
	"github.com/dukerupert/questwalk/internal/missionapi"
	"github.com/dukerupert/questwalk/internal/navigation"
	"github.com/dukerupert/questwalk/internal/progress"
	"github.com/dukerupert/questwalk/internal/server"
	"github.com/dukerupert/questwalk/internal/store"
	"github.com/dukerupert/questwalk/internal/visit"
	ws "github.com/dukerupert/questwalk/internal/websocket"
)

func main() {
	configPath := flag.String("config", os.Getenv("QUESTWALK_CONFIG"), "path to a TOML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.Log.Level, cfg.Log.Format)

	loc, err := cfg.Location()
	if err != nil {
		slog.Error("invalid timezone", "timezone", cfg.Progress.Timezone, "error", err)
		os.Exit(1)
	}

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	api, err := missionapi.NewClient(missionapi.Config{
		BaseURL: cfg.API.URL,
		UserID:  cfg.API.UserID,
		Timeout: cfg.API.Timeout.Duration,
	}, logger)
	if err != nil {
		slog.Error("failed to create mission client", "error", err)
		os.Exit(1)
	}

	hub := ws.NewHub(logger)
	mailbox := navigation.NewMailbox()

	controller := mission.NewController(store.NewProgressStore(db), api, mailbox, logger, mission.Options{
		Snapshots: store.NewSnapshotStore(db),
		Reset:     progress.DailyReset{Location: loc},
		Policy:    mission.SelectionPolicy{ResetProgressOnSwitch: cfg.Progress.ResetOnSwitch},
		OnChange: func(c mission.Change) {
			hub.Broadcast(ws.ProgressMessage(c.Action, c.MissionID, c.TaskID, c.Locked, c.TotalPoints, c.Completed))
		},
	})

	visits := visit.NewService(api, mailbox, logger)
	missionH := handler.NewMissionHandler(controller, api, visits, mailbox, logger)
	srv := server.New(missionH, hub, logger)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()
	go srv.RunCleanup(cleanupCtx)

	go func() {
		slog.Info("questwalk starting", "addr", ":"+cfg.Port, "mission_service", cfg.API.URL, "user_id", api.UserID())
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down")
	cleanupCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
