package webhooks

import (
	"context"
	"testing"

	"github.com/ordercore/fulfillment/internal/apperr"
)

// fakeQueue is list-shaped like the redis queue: Enqueue pushes to the
// head, pop takes from the tail.
type fakeQueue struct {
	tasks []RetryTask
	dead  []RetryTask
}

func (q *fakeQueue) Enqueue(ctx context.Context, task RetryTask) error {
	q.tasks = append([]RetryTask{task}, q.tasks...)
	return nil
}

func (q *fakeQueue) pop(ctx context.Context) (RetryTask, bool, error) {
	if len(q.tasks) == 0 {
		return RetryTask{}, false, nil
	}
	task := q.tasks[len(q.tasks)-1]
	q.tasks = q.tasks[:len(q.tasks)-1]
	return task, true, nil
}

func (q *fakeQueue) deadLetter(ctx context.Context, task RetryTask) error {
	q.dead = append(q.dead, task)
	return nil
}

func TestDrainDropsReplayedTask(t *testing.T) {
	t.Parallel()

	q := &fakeQueue{}
	_ = q.Enqueue(context.Background(), RetryTask{EventID: "evt_1", Body: []byte("{}")})

	replays := 0
	w := &RetryWorker{
		queue:    q,
		replay:   func(ctx context.Context, body []byte) error { replays++; return nil },
		maxTries: 3,
	}
	w.drain(context.Background())

	if replays != 1 {
		t.Fatalf("replays: got %d", replays)
	}
	if len(q.tasks) != 0 || len(q.dead) != 0 {
		t.Fatalf("a replayed task must leave the queue, tasks=%d dead=%d", len(q.tasks), len(q.dead))
	}
}

func TestDrainReplaysEachTaskOncePerPass(t *testing.T) {
	t.Parallel()

	q := &fakeQueue{}
	_ = q.Enqueue(context.Background(), RetryTask{EventID: "evt_1", Body: []byte("{}")})

	replays := 0
	w := &RetryWorker{
		queue:    q,
		replay:   func(ctx context.Context, body []byte) error { replays++; return apperr.ErrNotFound },
		maxTries: 5,
	}
	w.drain(context.Background())

	// the requeued task waits for the next tick instead of burning the
	// whole budget in one pass
	if replays != 1 {
		t.Fatalf("replays in one pass: got %d", replays)
	}
	if len(q.tasks) != 1 || q.tasks[0].Attempt != 1 {
		t.Fatalf("queue after pass: got %+v", q.tasks)
	}
}

func TestDrainExhaustsBudgetToDeadLetter(t *testing.T) {
	t.Parallel()

	q := &fakeQueue{}
	_ = q.Enqueue(context.Background(), RetryTask{EventID: "evt_1", Body: []byte("{}")})

	w := &RetryWorker{
		queue:    q,
		replay:   func(ctx context.Context, body []byte) error { return apperr.ErrNotFound },
		maxTries: 3,
	}
	for i := 0; i < 3; i++ {
		w.drain(context.Background())
	}

	if len(q.tasks) != 0 {
		t.Fatalf("queue must be empty after exhaustion, got %+v", q.tasks)
	}
	if len(q.dead) != 1 || q.dead[0].EventID != "evt_1" || q.dead[0].Attempt != 3 {
		t.Fatalf("dead letter: got %+v", q.dead)
	}
}
