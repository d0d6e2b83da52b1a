package unit

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	mediabuyservice "adbroker/contexts/media-buying/mediabuy-service"
	"adbroker/contexts/media-buying/mediabuy-service/application/commands"
	"adbroker/contexts/media-buying/mediabuy-service/application/workers"
	"adbroker/contexts/media-buying/mediabuy-service/domain/entities"
	"adbroker/contexts/media-buying/mediabuy-service/ports"
)

type subscription struct {
	topic   string
	group   string
	handler func(context.Context, ports.EventEnvelope) error
}

type stubSubscriber struct {
	subscriptions []subscription
}

func (s *stubSubscriber) Subscribe(_ context.Context, topic string, group string, handler func(context.Context, ports.EventEnvelope) error) error {
	s.subscriptions = append(s.subscriptions, subscription{topic: topic, group: group, handler: handler})
	return nil
}

func (s *stubSubscriber) deliver(ctx context.Context, topic string, event ports.EventEnvelope) error {
	for _, sub := range s.subscriptions {
		if sub.topic == topic {
			return sub.handler(ctx, event)
		}
	}
	return nil
}

func taskOutcomeEvent(eventID string, mediaBuyID string, status string) ports.EventEnvelope {
	payload, _ := json.Marshal(map[string]any{
		"task_id":     "task-1",
		"subject_ref": "media_buy/" + mediaBuyID,
		"status":      status,
		"decided_by":  "reviewer-1",
		"reason":      "",
	})
	return ports.EventEnvelope{
		EventID:   eventID,
		EventType: "task." + status,
		Data:      payload,
	}
}

func reviewReadyBuy(t *testing.T, module mediabuyservice.Module) entities.MediaBuy {
	t.Helper()
	ctx := context.Background()
	buy := createBuy(t, module, []commands.PackageInput{
		{ProductRef: "prod-1", Budget: 4000, FormatIDs: []string{"banner_300x250"}},
	})
	packages, err := module.Store.ListPackages(ctx, buy.MediaBuyID)
	if err != nil {
		t.Fatalf("list packages failed: %v", err)
	}
	ready, err := module.AttachCreative.Execute(ctx, commands.AttachCreativeCommand{
		MediaBuyID: buy.MediaBuyID,
		PackageID:  packages[0].PackageID,
		FormatID:   "banner_300x250",
		AssetURI:   "https://cdn.example.com/banner.png",
		Actor:      "buyer-1",
	})
	if err != nil {
		t.Fatalf("attach failed: %v", err)
	}
	return ready
}

func TestTaskApprovedActivatesMediaBuy(t *testing.T) {
	module := mediabuyservice.NewInMemoryModule(nil, nil)
	ctx := context.Background()
	buy := reviewReadyBuy(t, module)

	subscriber := &stubSubscriber{}
	consumer := workers.TaskResolvedConsumer{
		Subscriber: subscriber,
		Buys:       module.Store,
		Activate:   module.ActivateMediaBuy,
		Fail:       module.FailMediaBuy,
		Dedup:      module.Store,
	}
	if err := consumer.Start(ctx); err != nil {
		t.Fatalf("consumer start failed: %v", err)
	}
	if len(subscriber.subscriptions) != 3 {
		t.Fatalf("expected subscriptions to every task outcome topic, got %d", len(subscriber.subscriptions))
	}

	event := taskOutcomeEvent("evt-1", buy.MediaBuyID, "approved")
	if err := subscriber.deliver(ctx, "task.approved", event); err != nil {
		t.Fatalf("deliver approved failed: %v", err)
	}

	updated, err := module.Store.GetMediaBuy(ctx, buy.MediaBuyID)
	if err != nil {
		t.Fatalf("get media buy failed: %v", err)
	}
	if updated.Status != entities.BuyStatusActive {
		t.Fatalf("expected active after approval, got %s", updated.Status)
	}
	if updated.ApprovalState != entities.ApprovalStateApproved || updated.BackendOrderID == "" {
		t.Fatalf("expected approved buy with backend order, got %+v", updated)
	}
	orderID := updated.BackendOrderID

	// Replaying the same event id is a no-op.
	if err := subscriber.deliver(ctx, "task.approved", event); err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	replayed, err := module.Store.GetMediaBuy(ctx, buy.MediaBuyID)
	if err != nil {
		t.Fatalf("get media buy failed: %v", err)
	}
	if replayed.BackendOrderID != orderID {
		t.Fatalf("replay must not re-activate, order changed from %s to %s", orderID, replayed.BackendOrderID)
	}
}

func TestTaskRejectedFailsMediaBuy(t *testing.T) {
	module := mediabuyservice.NewInMemoryModule(nil, nil)
	ctx := context.Background()
	buy := reviewReadyBuy(t, module)

	subscriber := &stubSubscriber{}
	consumer := workers.TaskResolvedConsumer{
		Subscriber: subscriber,
		Buys:       module.Store,
		Activate:   module.ActivateMediaBuy,
		Fail:       module.FailMediaBuy,
		Dedup:      module.Store,
	}
	if err := consumer.Start(ctx); err != nil {
		t.Fatalf("consumer start failed: %v", err)
	}

	if err := subscriber.deliver(ctx, "task.rejected", taskOutcomeEvent("evt-2", buy.MediaBuyID, "rejected")); err != nil {
		t.Fatalf("deliver rejected failed: %v", err)
	}

	updated, err := module.Store.GetMediaBuy(ctx, buy.MediaBuyID)
	if err != nil {
		t.Fatalf("get media buy failed: %v", err)
	}
	if updated.Status != entities.BuyStatusFailed || updated.FailureReason != entities.FailureReasonTaskRejected {
		t.Fatalf("expected failed with task_rejected, got %s %s", updated.Status, updated.FailureReason)
	}
	if updated.ApprovalState != entities.ApprovalStateRejected {
		t.Fatalf("expected rejected approval state, got %s", updated.ApprovalState)
	}
}

func TestTaskExpiredLeavesBuyBlocked(t *testing.T) {
	module := mediabuyservice.NewInMemoryModule(nil, nil)
	ctx := context.Background()
	buy := reviewReadyBuy(t, module)

	subscriber := &stubSubscriber{}
	consumer := workers.TaskResolvedConsumer{
		Subscriber: subscriber,
		Buys:       module.Store,
		Activate:   module.ActivateMediaBuy,
		Fail:       module.FailMediaBuy,
		Dedup:      module.Store,
	}
	if err := consumer.Start(ctx); err != nil {
		t.Fatalf("consumer start failed: %v", err)
	}

	if err := subscriber.deliver(ctx, "task.expired", taskOutcomeEvent("evt-3", buy.MediaBuyID, "expired")); err != nil {
		t.Fatalf("deliver expired failed: %v", err)
	}

	updated, err := module.Store.GetMediaBuy(ctx, buy.MediaBuyID)
	if err != nil {
		t.Fatalf("get media buy failed: %v", err)
	}
	if updated.Status != entities.BuyStatusPendingApproval || updated.ApprovalState != entities.ApprovalStateRequired {
		t.Fatalf("expected buy to stay blocked, got %s %s", updated.Status, updated.ApprovalState)
	}
}

func activationResultEvent(eventID string, mediaBuyID string, status string, reason string) ports.EventEnvelope {
	payload, _ := json.Marshal(map[string]any{
		"activation_id": "act-1",
		"media_buy_id":  mediaBuyID,
		"status":        status,
		"reason":        reason,
	})
	return ports.EventEnvelope{
		EventID:   eventID,
		EventType: "signal_activation." + status,
		Data:      payload,
	}
}

func TestActivationFailedFailsMediaBuy(t *testing.T) {
	module := mediabuyservice.NewInMemoryModule(nil, nil)
	ctx := context.Background()
	buy := reviewReadyBuy(t, module)

	subscriber := &stubSubscriber{}
	consumer := workers.ActivationResultConsumer{
		Subscriber: subscriber,
		Activate:   module.ActivateMediaBuy,
		Fail:       module.FailMediaBuy,
		Dedup:      module.Store,
	}
	if err := consumer.Start(ctx); err != nil {
		t.Fatalf("consumer start failed: %v", err)
	}
	if len(subscriber.subscriptions) != 2 {
		t.Fatalf("expected subscriptions to both activation topics, got %d", len(subscriber.subscriptions))
	}

	event := activationResultEvent("evt-10", buy.MediaBuyID, "failed", "poll_exhausted")
	if err := subscriber.deliver(ctx, "signal_activation.failed", event); err != nil {
		t.Fatalf("deliver failed result failed: %v", err)
	}

	updated, err := module.Store.GetMediaBuy(ctx, buy.MediaBuyID)
	if err != nil {
		t.Fatalf("get media buy failed: %v", err)
	}
	if updated.Status != entities.BuyStatusFailed || updated.FailureReason != entities.FailureReasonActivationFailed {
		t.Fatalf("expected failed with signal_activation_failed, got %s %s", updated.Status, updated.FailureReason)
	}
	audit, err := module.Store.ListAudit(ctx, buy.MediaBuyID)
	if err != nil {
		t.Fatalf("list audit failed: %v", err)
	}

	// Replaying the same event id is a no-op.
	if err := subscriber.deliver(ctx, "signal_activation.failed", event); err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	auditAfter, err := module.Store.ListAudit(ctx, buy.MediaBuyID)
	if err != nil {
		t.Fatalf("list audit failed: %v", err)
	}
	if len(auditAfter) != len(audit) {
		t.Fatalf("replay must not write another transition, audit grew from %d to %d", len(audit), len(auditAfter))
	}
}

func TestActivationActivatedUnblocksMediaBuy(t *testing.T) {
	module := mediabuyservice.NewInMemoryModule(nil, nil)
	ctx := context.Background()
	buy := reviewReadyBuy(t, module)

	subscriber := &stubSubscriber{}
	consumer := workers.ActivationResultConsumer{
		Subscriber: subscriber,
		Activate:   module.ActivateMediaBuy,
		Fail:       module.FailMediaBuy,
		Dedup:      module.Store,
	}
	if err := consumer.Start(ctx); err != nil {
		t.Fatalf("consumer start failed: %v", err)
	}

	// The approval gate is still closed: the result is tolerated and the
	// buy stays where it is until the review task resolves.
	if err := subscriber.deliver(ctx, "signal_activation.activated",
		activationResultEvent("evt-20", buy.MediaBuyID, "activated", "")); err != nil {
		t.Fatalf("deliver before approval failed: %v", err)
	}
	blocked, err := module.Store.GetMediaBuy(ctx, buy.MediaBuyID)
	if err != nil {
		t.Fatalf("get media buy failed: %v", err)
	}
	if blocked.Status != entities.BuyStatusPendingApproval {
		t.Fatalf("expected buy to stay pending_approval, got %s", blocked.Status)
	}

	if _, err := module.Store.SetApprovalState(ctx, buy.MediaBuyID, entities.ApprovalStateApproved, time.Now().UTC()); err != nil {
		t.Fatalf("set approval state failed: %v", err)
	}
	if err := subscriber.deliver(ctx, "signal_activation.activated",
		activationResultEvent("evt-21", buy.MediaBuyID, "activated", "")); err != nil {
		t.Fatalf("deliver after approval failed: %v", err)
	}

	activated, err := module.Store.GetMediaBuy(ctx, buy.MediaBuyID)
	if err != nil {
		t.Fatalf("get media buy failed: %v", err)
	}
	if activated.Status != entities.BuyStatusActive || activated.BackendOrderID == "" {
		t.Fatalf("expected active buy with backend order, got %+v", activated)
	}

	// A stale repeat for an already-active buy is tolerated too.
	if err := subscriber.deliver(ctx, "signal_activation.activated",
		activationResultEvent("evt-22", buy.MediaBuyID, "activated", "")); err != nil {
		t.Fatalf("deliver for active buy failed: %v", err)
	}
}

func TestFlightSweeperClosesEndedBuys(t *testing.T) {
	past := time.Now().UTC().Add(-time.Hour)
	start := past.Add(-30 * 24 * time.Hour)
	module := mediabuyservice.NewInMemoryModule([]entities.MediaBuy{
		{
			MediaBuyID: "buy-delivered", TenantID: "tenant-1", PrincipalID: "principal-1",
			BuyerRef: "po-1", Status: entities.BuyStatusActive,
			ApprovalState: entities.ApprovalStateApproved,
			BudgetTotal:   5000, FlightStart: start, FlightEnd: past,
			CreatedAt: start, UpdatedAt: start,
		},
		{
			MediaBuyID: "buy-stalled", TenantID: "tenant-1", PrincipalID: "principal-1",
			BuyerRef: "po-2", Status: entities.BuyStatusActive,
			ApprovalState: entities.ApprovalStateApproved,
			BudgetTotal:   5000, FlightStart: start, FlightEnd: past,
			CreatedAt: start, UpdatedAt: start,
		},
	}, nil)
	ctx := context.Background()
	module.Gateway.SetDelivery("buy-delivered", 120000, 4800, "USD")

	if err := module.FlightSweeper.RunOnce(ctx); err != nil {
		t.Fatalf("flight sweep failed: %v", err)
	}

	delivered, err := module.Store.GetMediaBuy(ctx, "buy-delivered")
	if err != nil {
		t.Fatalf("get media buy failed: %v", err)
	}
	if delivered.Status != entities.BuyStatusCompleted || delivered.CompletedAt == nil {
		t.Fatalf("expected delivering buy to complete, got %+v", delivered)
	}

	stalled, err := module.Store.GetMediaBuy(ctx, "buy-stalled")
	if err != nil {
		t.Fatalf("get media buy failed: %v", err)
	}
	if stalled.Status != entities.BuyStatusFailed || stalled.FailureReason != entities.FailureReasonFlightUnfulfilled {
		t.Fatalf("expected undelivered buy to fail, got %s %s", stalled.Status, stalled.FailureReason)
	}

	// Terminal buys drop out of the sweep; a second pass changes nothing.
	if err := module.FlightSweeper.RunOnce(ctx); err != nil {
		t.Fatalf("second sweep failed: %v", err)
	}
	again, err := module.Store.GetMediaBuy(ctx, "buy-delivered")
	if err != nil {
		t.Fatalf("get media buy failed: %v", err)
	}
	if again.Status != entities.BuyStatusCompleted {
		t.Fatalf("expected completed to stick, got %s", again.Status)
	}
}
