// server/main.go
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/arbornote/arbor/config"
	httphandlers "github.com/arbornote/arbor/http"
	"github.com/arbornote/arbor/notes"
	"github.com/arbornote/arbor/store"
	"github.com/arbornote/arbor/store/filestore"
	"github.com/arbornote/arbor/store/pgstore"
	"github.com/arbornote/arbor/tree"
	"github.com/arbornote/arbor/treestore"
	"github.com/arbornote/arbor/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("configuration failed")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
	tree.SetLogger(log)

	objects, cleanup, err := openStore(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Str("store", cfg.Store).Msg("store open failed")
	}
	defer cleanup()

	svc := notes.NewService(objects, treestore.New(objects, log), log)

	hub := ws.NewHub(log)
	go hub.Run()

	app := fiber.New(fiber.Config{
		AppName:               "arbor",
		DisableStartupMessage: true,
	})
	httphandlers.NewServer(svc, hub, log).Register(app, cfg.TokenHash)

	log.Info().Str("port", cfg.Port).Str("store", cfg.Store).Msg("server starting")
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func openStore(cfg config.Config, log zerolog.Logger) (store.ObjectStore, func(), error) {
	switch cfg.Store {
	case config.StoreMem:
		return store.NewMemStore(), func() {}, nil
	case config.StoreFile:
		s, err := filestore.New(cfg.DataDir)
		if err != nil {
			return nil, nil, err
		}
		return s, func() {}, nil
	case config.StorePostgres:
		s, err := pgstore.Open(context.Background(), cfg.DatabaseURL, log)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store)
}
