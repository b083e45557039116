// Package jobs defines the background tasks that move persistence work
// out of the request path.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/umnovI/poke-project/internal/fingerprint"
	"github.com/umnovI/poke-project/internal/store"
)

const TaskPersistPartial = "cache:persist_partial"

// PersistPartialPayload carries one rewritten pass-through body to the
// worker.
type PersistPartialPayload struct {
	ID     string `json:"id"`
	Body   string `json:"body"`
	Source string `json:"source"`
}

// Enqueuer pushes partial-cache writes onto the queue. It satisfies
// content.PartialWriter.
type Enqueuer struct {
	client *asynq.Client
	log    zerolog.Logger
}

func NewEnqueuer(redisAddr string, log zerolog.Logger) *Enqueuer {
	return &Enqueuer{
		client: asynq.NewClient(asynq.RedisClientOpt{Addr: redisAddr}),
		log:    log,
	}
}

func (e *Enqueuer) Close() error {
	return e.client.Close()
}

func (e *Enqueuer) WritePartial(ctx context.Context, id, body, source string) error {
	payload, err := json.Marshal(PersistPartialPayload{ID: id, Body: body, Source: source})
	if err != nil {
		return fmt.Errorf("marshal persist payload: %w", err)
	}
	info, err := e.client.EnqueueContext(ctx, asynq.NewTask(TaskPersistPartial, payload))
	if err != nil {
		return fmt.Errorf("enqueue persist task: %w", err)
	}
	e.log.Debug().Str("task_id", info.ID).Str("id", id).Msg("queued partial-cache write")
	return nil
}

// HandlePersistPartial returns the worker-side handler that writes a
// queued body to the store.
func HandlePersistPartial(st store.Store, log zerolog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var p PersistPartialPayload
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			log.Error().Err(err).Msg("bad persist payload, dropping")
			return nil
		}
		err := st.UpsertPartial(ctx, store.Partial{
			ID:        p.ID,
			Body:      fingerprint.Encode(p.Body),
			CreatedAt: time.Now(),
			Source:    p.Source,
		})
		if err != nil {
			return fmt.Errorf("persist partial %s: %w", p.ID, err)
		}
		log.Debug().Str("id", p.ID).Msg("partial-cache row written")
		return nil
	}
}
