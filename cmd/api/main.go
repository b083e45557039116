// cmd/api/main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/umnovI/poke-project/internal/config"
	"github.com/umnovI/poke-project/internal/content"
	"github.com/umnovI/poke-project/internal/freshness"
	"github.com/umnovI/poke-project/internal/http/routes"
	"github.com/umnovI/poke-project/internal/jobs"
	"github.com/umnovI/poke-project/internal/rewrite"
	"github.com/umnovI/poke-project/internal/store"
	"github.com/umnovI/poke-project/internal/upstream"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	log.Printf("starting relay on :%s", cfg.Port)

	pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db error: %v", err)
	}
	defer pool.Close()

	st := store.NewPG(pool)
	if err := st.CreateTables(context.Background()); err != nil {
		log.Fatalf("create tables: %v", err)
	}

	client := upstream.NewClient(
		&http.Client{Timeout: cfg.FetchTimeout},
		cfg.TransportTTL,
		logger.With().Str("component", "upstream").Logger(),
	)
	defer client.Stop()

	hosts := upstream.Hosts{Data: cfg.DataHost, Media: cfg.MediaHost}
	rw := rewrite.New(cfg.DataHost, cfg.MediaHost)
	tracker := freshness.NewTracker(st, client, cfg.FreshnessTTL,
		logger.With().Str("component", "freshness").Logger())

	// Partial-cache writes go through the queue when Redis is
	// configured, otherwise they happen inline.
	var partial content.PartialWriter
	if cfg.RedisAddr != "" {
		enq := jobs.NewEnqueuer(cfg.RedisAddr, logger.With().Str("component", "jobs").Logger())
		defer func() {
			if err := enq.Close(); err != nil {
				logger.Error().Err(err).Msg("close enqueuer")
			}
		}()
		partial = enq
	}

	svc := content.NewService(content.ServiceOptions{
		Store:     st,
		Freshness: tracker,
		Client:    client,
		Rewriter:  rw,
		Hosts:     hosts,
		Partial:   partial,
		Producers: map[string]content.Producer{
			"pokemon-detailed": content.NewPokemonDetailed(client, rw, hosts),
			"search-list":      content.NewSearchList(client, rw, hosts),
		},
		Log: logger.With().Str("component", "content").Logger(),
	})

	s, err := routes.New(routes.ServerOptions{
		Content: svc,
		Client:  client,
		Hosts:   hosts,
		Log:     logger,
	})
	if err != nil {
		log.Fatalf("routes error: %v", err)
	}
	h := hlog.NewHandler(logger)(s.Router)

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: h}
	log.Fatal(srv.ListenAndServe())
}
