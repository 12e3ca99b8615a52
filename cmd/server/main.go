// Package main runs the dice room server: a websocket listener feeding the
// session/room state machine and message router.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/hallowdale/dicetable/internal/config"
	"github.com/hallowdale/dicetable/internal/game/room"
	"github.com/hallowdale/dicetable/internal/game/router"
	"github.com/hallowdale/dicetable/internal/game/session"
	"github.com/hallowdale/dicetable/internal/observability"
	"github.com/hallowdale/dicetable/internal/server"
	"github.com/hallowdale/dicetable/internal/transport/ws"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	players := session.NewRegistry()
	rooms := room.NewRegistry()

	rt := router.New(router.Config{
		JoinBroadcastDelay: cfg.Game.JoinBroadcastDelay,
		RoomDefaults: room.Settings{
			MaxDice:         cfg.Game.DefaultMaxDice,
			AllowOwnerFudge: cfg.Game.AllowOwnerFudge,
		},
	}, players, rooms, logger)

	acceptor := ws.NewAcceptor(cfg.Websocket, rt, logger)

	lifecycle := server.NewLifecycle(logger)
	lifecycle.Add("websocket", &server.FuncService{
		StartFn: acceptor.ListenAndServe,
		StopFn:  acceptor.Stop,
	})

	logger.Info("dice server initialized",
		zap.Duration("startup", time.Since(start)),
		zap.String("addr", cfg.Websocket.Addr()),
	)

	if err := lifecycle.Run(ctx); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
