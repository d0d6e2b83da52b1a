package unit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	approvalservice "adbroker/contexts/media-buying/approval-service"
	approvalworkers "adbroker/contexts/media-buying/approval-service/application/workers"
	domainerrors "adbroker/contexts/media-buying/approval-service/domain/errors"
	httptransport "adbroker/contexts/media-buying/approval-service/transport/http"
)

type fixedClock struct {
	t time.Time
}

func (c fixedClock) Now() time.Time {
	return c.t
}

func TestApprovalTaskLifecycle(t *testing.T) {
	module := approvalservice.NewInMemoryModule(nil, nil)
	ctx := context.Background()
	due := time.Now().UTC().Add(48 * time.Hour)

	created, err := module.Handler.CreateTaskHandler(ctx, "tenant-1", httptransport.CreateTaskRequest{
		TaskType:   "media_buy_approval",
		SubjectRef: "media_buy/buy-1",
		DueDate:    due.Format(time.RFC3339),
	})
	if err != nil {
		t.Fatalf("create task failed: %v", err)
	}
	if created.Task.Status != "pending" || created.Task.Version != 1 {
		t.Fatalf("expected pending v1, got %s v%d", created.Task.Status, created.Task.Version)
	}

	resolved, err := module.Handler.ResolveTaskHandler(ctx, "reviewer-1", created.Task.TaskID, httptransport.ResolveTaskRequest{
		ExpectedVersion: 1,
		Decision:        "approve",
	})
	if err != nil {
		t.Fatalf("resolve task failed: %v", err)
	}
	if resolved.Task.Status != "approved" || resolved.Task.Version != 2 {
		t.Fatalf("expected approved v2, got %s v%d", resolved.Task.Status, resolved.Task.Version)
	}
	if resolved.Task.DecidedBy != "reviewer-1" {
		t.Fatalf("expected decided_by reviewer-1, got %s", resolved.Task.DecidedBy)
	}

	outbox, err := module.Store.ListPendingOutbox(ctx, 10)
	if err != nil {
		t.Fatalf("list outbox failed: %v", err)
	}
	if len(outbox) != 1 || outbox[0].EventType != "task.approved" {
		t.Fatalf("expected one task.approved outbox row, got %+v", outbox)
	}
}

func TestApprovalTaskResolveStaleVersionConflicts(t *testing.T) {
	module := approvalservice.NewInMemoryModule(nil, nil)
	ctx := context.Background()
	due := time.Now().UTC().Add(24 * time.Hour)

	created, err := module.Handler.CreateTaskHandler(ctx, "tenant-1", httptransport.CreateTaskRequest{
		TaskType:   "media_buy_approval",
		SubjectRef: "media_buy/buy-2",
		DueDate:    due.Format(time.RFC3339),
	})
	if err != nil {
		t.Fatalf("create task failed: %v", err)
	}

	_, err = module.Handler.ResolveTaskHandler(ctx, "reviewer-1", created.Task.TaskID, httptransport.ResolveTaskRequest{
		ExpectedVersion: 2,
		Decision:        "approve",
	})
	if !errors.Is(err, domainerrors.ErrVersionConflict) {
		t.Fatalf("expected version conflict for stale version, got %v", err)
	}

	if _, err := module.Handler.ResolveTaskHandler(ctx, "reviewer-1", created.Task.TaskID, httptransport.ResolveTaskRequest{
		ExpectedVersion: 1,
		Decision:        "reject",
		Reason:          "creative violates policy",
	}); err != nil {
		t.Fatalf("first resolve failed: %v", err)
	}

	_, err = module.Handler.ResolveTaskHandler(ctx, "reviewer-2", created.Task.TaskID, httptransport.ResolveTaskRequest{
		ExpectedVersion: 2,
		Decision:        "approve",
	})
	if !errors.Is(err, domainerrors.ErrTaskTerminal) {
		t.Fatalf("expected terminal conflict after resolution, got %v", err)
	}
}

func TestApprovalTaskConcurrentResolveHasOneWinner(t *testing.T) {
	module := approvalservice.NewInMemoryModule(nil, nil)
	ctx := context.Background()

	created, err := module.Handler.CreateTaskHandler(ctx, "tenant-1", httptransport.CreateTaskRequest{
		TaskType:   "media_buy_approval",
		SubjectRef: "media_buy/buy-race",
		DueDate:    time.Now().UTC().Add(time.Hour).Format(time.RFC3339),
	})
	if err != nil {
		t.Fatalf("create task failed: %v", err)
	}

	const resolvers = 16
	var wg sync.WaitGroup
	var wins int64
	for i := 0; i < resolvers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := module.Handler.ResolveTaskHandler(ctx, fmt.Sprintf("reviewer-%d", n), created.Task.TaskID, httptransport.ResolveTaskRequest{
				ExpectedVersion: 1,
				Decision:        "approve",
			})
			switch {
			case err == nil:
				atomic.AddInt64(&wins, 1)
			case errors.Is(err, domainerrors.ErrVersionConflict), errors.Is(err, domainerrors.ErrTaskTerminal):
			default:
				t.Errorf("unexpected resolve error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if wins != 1 {
		t.Fatalf("expected exactly one resolver to win, got %d", wins)
	}

	resolved, err := module.Handler.GetTaskHandler(ctx, created.Task.TaskID)
	if err != nil {
		t.Fatalf("get task failed: %v", err)
	}
	if resolved.Task.Status != "approved" || resolved.Task.Version != 2 {
		t.Fatalf("expected a single approved v2 outcome, got %s v%d", resolved.Task.Status, resolved.Task.Version)
	}
}

func TestApprovalTaskExpiryBeatsLateResolve(t *testing.T) {
	module := approvalservice.NewInMemoryModule(nil, nil)
	ctx := context.Background()
	due := time.Now().UTC().Add(time.Hour)

	created, err := module.Handler.CreateTaskHandler(ctx, "tenant-1", httptransport.CreateTaskRequest{
		TaskType:   "media_buy_approval",
		SubjectRef: "media_buy/buy-3",
		DueDate:    due.Format(time.RFC3339),
	})
	if err != nil {
		t.Fatalf("create task failed: %v", err)
	}

	expirer := approvalworkers.TaskExpirer{
		Tasks:  module.Store,
		Outbox: module.Store,
		Clock:  fixedClock{t: due.Add(time.Minute)},
		IDGen:  module.Store,
	}
	if err := expirer.RunOnce(ctx); err != nil {
		t.Fatalf("expiry sweep failed: %v", err)
	}

	expired, err := module.Handler.GetTaskHandler(ctx, created.Task.TaskID)
	if err != nil {
		t.Fatalf("get task failed: %v", err)
	}
	if expired.Task.Status != "expired" || expired.Task.Version != 2 {
		t.Fatalf("expected expired v2, got %s v%d", expired.Task.Status, expired.Task.Version)
	}

	_, err = module.Handler.ResolveTaskHandler(ctx, "reviewer-1", created.Task.TaskID, httptransport.ResolveTaskRequest{
		ExpectedVersion: 1,
		Decision:        "approve",
	})
	if !errors.Is(err, domainerrors.ErrTaskTerminal) {
		t.Fatalf("expected terminal conflict after expiry, got %v", err)
	}

	outbox, err := module.Store.ListPendingOutbox(ctx, 10)
	if err != nil {
		t.Fatalf("list outbox failed: %v", err)
	}
	if len(outbox) != 1 || outbox[0].EventType != "task.expired" {
		t.Fatalf("expected one task.expired outbox row, got %+v", outbox)
	}

	// The sweep is idempotent: a second run finds nothing due.
	if err := expirer.RunOnce(ctx); err != nil {
		t.Fatalf("second expiry sweep failed: %v", err)
	}
	outbox, err = module.Store.ListPendingOutbox(ctx, 10)
	if err != nil {
		t.Fatalf("list outbox failed: %v", err)
	}
	if len(outbox) != 1 {
		t.Fatalf("expected no additional events from repeated sweep, got %d", len(outbox))
	}
}

func TestApprovalTaskRejectsUnknownDecision(t *testing.T) {
	module := approvalservice.NewInMemoryModule(nil, nil)
	ctx := context.Background()

	created, err := module.Handler.CreateTaskHandler(ctx, "tenant-1", httptransport.CreateTaskRequest{
		TaskType:   "media_buy_approval",
		SubjectRef: "media_buy/buy-4",
		DueDate:    time.Now().UTC().Add(time.Hour).Format(time.RFC3339),
	})
	if err != nil {
		t.Fatalf("create task failed: %v", err)
	}

	_, err = module.Handler.ResolveTaskHandler(ctx, "reviewer-1", created.Task.TaskID, httptransport.ResolveTaskRequest{
		ExpectedVersion: 1,
		Decision:        "defer",
	})
	if !errors.Is(err, domainerrors.ErrInvalidDecision) {
		t.Fatalf("expected invalid decision, got %v", err)
	}
}
