package webhooks

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ordercore/fulfillment/internal/apperr"
	"github.com/ordercore/fulfillment/internal/redisx"
)

// RetryTask is a refund event that arrived before its refund row was
// visible locally. The raw body is carried so the retry goes through the
// exact same processing path, ledger included.
type RetryTask struct {
	EventID   string    `json:"event_id"`
	Body      []byte    `json:"body"`
	Attempt   int       `json:"attempt"`
	EnqueueAt time.Time `json:"enqueue_at"`
}

type RetryQueue interface {
	Enqueue(ctx context.Context, task RetryTask) error
}

// RedisRetryQueue parks early refund events in a redis list.
type RedisRetryQueue struct {
	rdb *redis.Client
}

func NewRedisRetryQueue(rdb *redis.Client) *RedisRetryQueue {
	return &RedisRetryQueue{rdb: rdb}
}

func (q *RedisRetryQueue) Enqueue(ctx context.Context, task RetryTask) error {
	b, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return q.rdb.LPush(ctx, redisx.KeyWebhookRetry, b).Err()
}

func (q *RedisRetryQueue) pop(ctx context.Context) (RetryTask, bool, error) {
	b, err := q.rdb.RPop(ctx, redisx.KeyWebhookRetry).Bytes()
	if errors.Is(err, redis.Nil) {
		return RetryTask{}, false, nil
	}
	if err != nil {
		return RetryTask{}, false, err
	}
	var task RetryTask
	if err := json.Unmarshal(b, &task); err != nil {
		return RetryTask{}, false, err
	}
	return task, true, nil
}

func (q *RedisRetryQueue) deadLetter(ctx context.Context, task RetryTask) error {
	b, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return q.rdb.LPush(ctx, redisx.KeyWebhookDead, b).Err()
}

type retryStore interface {
	Enqueue(ctx context.Context, task RetryTask) error
	pop(ctx context.Context) (RetryTask, bool, error)
	deadLetter(ctx context.Context, task RetryTask) error
}

// RetryWorker drains the retry queue on an interval. Each drained task
// is replayed through the processor; a task that still cannot find its
// refund goes back on the queue with its attempt count bumped until the
// budget runs out, then moves to the dead-letter list.
type RetryWorker struct {
	queue    retryStore
	replay   func(ctx context.Context, body []byte) error
	interval time.Duration
	maxTries int
}

func NewRetryWorker(queue *RedisRetryQueue, replay func(ctx context.Context, body []byte) error, interval time.Duration, maxTries int) *RetryWorker {
	return &RetryWorker{queue: queue, replay: replay, interval: interval, maxTries: maxTries}
}

func (w *RetryWorker) Run(ctx context.Context) error {
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			w.drain(ctx)
		}
	}
}

// drain replays every parked task once. Requeues happen after the pop
// loop so a still-missing refund waits for the next tick instead of
// burning its whole budget in one pass.
func (w *RetryWorker) drain(ctx context.Context) {
	var requeue []RetryTask
	for {
		task, ok, err := w.queue.pop(ctx)
		if err != nil {
			log.Printf("webhook retry: pop: %v", err)
			break
		}
		if !ok {
			break
		}
		if err := w.replay(ctx, task.Body); err == nil {
			continue
		} else if !errors.Is(err, apperr.ErrNotFound) {
			log.Printf("webhook retry: event %s: %v", task.EventID, err)
		}

		task.Attempt++
		if task.Attempt >= w.maxTries {
			log.Printf("webhook retry: event %s exhausted after %d attempts", task.EventID, task.Attempt)
			if err := w.queue.deadLetter(ctx, task); err != nil {
				log.Printf("webhook retry: dead letter %s: %v", task.EventID, err)
			}
			continue
		}
		requeue = append(requeue, task)
	}
	for _, task := range requeue {
		if err := w.queue.Enqueue(ctx, task); err != nil {
			log.Printf("webhook retry: requeue %s: %v", task.EventID, err)
		}
	}
}
