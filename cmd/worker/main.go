// cmd/worker/main.go
package main

import (
	"context"
	"log"
	"os"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/umnovI/poke-project/internal/config"
	"github.com/umnovI/poke-project/internal/jobs"
	"github.com/umnovI/poke-project/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if cfg.RedisAddr == "" {
		log.Fatal("REDIS_ADDR is required for the worker")
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		log.Fatal("unable to connect to database:", err)
	}
	defer pool.Close()

	st := store.NewPG(pool)
	if err := st.CreateTables(context.Background()); err != nil {
		log.Fatalf("create tables: %v", err)
	}

	srv := asynq.NewServer(asynq.RedisClientOpt{Addr: cfg.RedisAddr}, asynq.Config{
		Concurrency: 8,
		Queues: map[string]int{
			"default": 5,
		},
	})
	mux := asynq.NewServeMux()
	mux.HandleFunc(jobs.TaskPersistPartial, jobs.HandlePersistPartial(st,
		logger.With().Str("component", "worker").Logger()))

	log.Println("Worker running...")
	log.Fatal(srv.Run(mux))
}
