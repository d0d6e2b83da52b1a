package unit

import (
	"context"
	"errors"
	"testing"
	"time"

	mediabuyservice "adbroker/contexts/media-buying/mediabuy-service"
	"adbroker/contexts/media-buying/mediabuy-service/application/commands"
	"adbroker/contexts/media-buying/mediabuy-service/domain/entities"
	mediabuyerrors "adbroker/contexts/media-buying/mediabuy-service/domain/errors"
)

func createBuy(t *testing.T, module mediabuyservice.Module, packages []commands.PackageInput) entities.MediaBuy {
	t.Helper()
	buy, err := module.CreateMediaBuy.Execute(context.Background(), commands.CreateMediaBuyCommand{
		TenantID:    "tenant-1",
		PrincipalID: "principal-1",
		BuyerRef:    "po-2026-001",
		BudgetTotal: 10000,
		FlightStart: time.Now().UTC().Add(24 * time.Hour),
		FlightEnd:   time.Now().UTC().Add(30 * 24 * time.Hour),
		Packages:    packages,
	})
	if err != nil {
		t.Fatalf("create media buy failed: %v", err)
	}
	return buy
}

func TestCreateMediaBuyValidation(t *testing.T) {
	module := mediabuyservice.NewInMemoryModule(nil, nil)
	ctx := context.Background()
	start := time.Now().UTC().Add(24 * time.Hour)
	end := start.Add(7 * 24 * time.Hour)

	cases := []struct {
		name string
		cmd  commands.CreateMediaBuyCommand
	}{
		{
			name: "no packages",
			cmd: commands.CreateMediaBuyCommand{
				TenantID: "tenant-1", PrincipalID: "principal-1", BuyerRef: "po-1",
				BudgetTotal: 1000, FlightStart: start, FlightEnd: end,
			},
		},
		{
			name: "flight end before start",
			cmd: commands.CreateMediaBuyCommand{
				TenantID: "tenant-1", PrincipalID: "principal-1", BuyerRef: "po-1",
				BudgetTotal: 1000, FlightStart: end, FlightEnd: start,
				Packages: []commands.PackageInput{{ProductRef: "prod-1", Budget: 500, FormatIDs: []string{"banner_300x250"}}},
			},
		},
		{
			name: "package budgets exceed total",
			cmd: commands.CreateMediaBuyCommand{
				TenantID: "tenant-1", PrincipalID: "principal-1", BuyerRef: "po-1",
				BudgetTotal: 1000, FlightStart: start, FlightEnd: end,
				Packages: []commands.PackageInput{
					{ProductRef: "prod-1", Budget: 800, FormatIDs: []string{"banner_300x250"}},
					{ProductRef: "prod-2", Budget: 800, FormatIDs: []string{"video_15s"}},
				},
			},
		},
		{
			name: "package without formats",
			cmd: commands.CreateMediaBuyCommand{
				TenantID: "tenant-1", PrincipalID: "principal-1", BuyerRef: "po-1",
				BudgetTotal: 1000, FlightStart: start, FlightEnd: end,
				Packages: []commands.PackageInput{{ProductRef: "prod-1", Budget: 500}},
			},
		},
	}
	for _, tc := range cases {
		if _, err := module.CreateMediaBuy.Execute(ctx, tc.cmd); !errors.Is(err, mediabuyerrors.ErrInvalidBuyInput) {
			t.Errorf("%s: expected invalid input, got %v", tc.name, err)
		}
	}
}

func TestAttachCreativesMovesBuyToReview(t *testing.T) {
	module := mediabuyservice.NewInMemoryModule(nil, nil)
	ctx := context.Background()
	buy := createBuy(t, module, []commands.PackageInput{
		{ProductRef: "prod-1", Budget: 4000, FormatIDs: []string{"banner_300x250"}},
		{ProductRef: "prod-2", Budget: 4000, FormatIDs: []string{"video_15s"}},
	})
	packages, err := module.Store.ListPackages(ctx, buy.MediaBuyID)
	if err != nil {
		t.Fatalf("list packages failed: %v", err)
	}

	// A creative for an unsupported format is rejected outright.
	_, err = module.AttachCreative.Execute(ctx, commands.AttachCreativeCommand{
		MediaBuyID: buy.MediaBuyID,
		PackageID:  packages[0].PackageID,
		FormatID:   "audio_30s",
		AssetURI:   "https://cdn.example.com/a.mp3",
		Actor:      "buyer-1",
	})
	if !errors.Is(err, mediabuyerrors.ErrInvalidBuyInput) {
		t.Fatalf("expected unsupported format rejection, got %v", err)
	}

	partial, err := module.AttachCreative.Execute(ctx, commands.AttachCreativeCommand{
		MediaBuyID: buy.MediaBuyID,
		PackageID:  packages[0].PackageID,
		FormatID:   "banner_300x250",
		AssetURI:   "https://cdn.example.com/banner.png",
		Actor:      "buyer-1",
	})
	if err != nil {
		t.Fatalf("first attach failed: %v", err)
	}
	if partial.Status != entities.BuyStatusPendingCreative {
		t.Fatalf("expected buy to wait for the second package, got %s", partial.Status)
	}

	complete, err := module.AttachCreative.Execute(ctx, commands.AttachCreativeCommand{
		MediaBuyID: buy.MediaBuyID,
		PackageID:  packages[1].PackageID,
		FormatID:   "video_15s",
		AssetURI:   "https://cdn.example.com/spot.mp4",
		Actor:      "buyer-1",
	})
	if err != nil {
		t.Fatalf("second attach failed: %v", err)
	}
	if complete.Status != entities.BuyStatusPendingApproval {
		t.Fatalf("expected pending_approval once every package is covered, got %s", complete.Status)
	}
	if complete.ApprovalState != entities.ApprovalStateRequired {
		t.Fatalf("expected manual policy to require review, got %s", complete.ApprovalState)
	}

	view, err := module.Handler.GetMediaBuyHandler(ctx, buy.MediaBuyID)
	if err != nil {
		t.Fatalf("get media buy failed: %v", err)
	}
	if len(view.Audit) != 1 || view.Audit[0].ToStatus != "pending_approval" {
		t.Fatalf("expected one audit row for the transition, got %+v", view.Audit)
	}
}

type activationsNotReady struct{}

func (activationsNotReady) AllActivated(context.Context, string) (bool, error) {
	return false, nil
}

func TestActivateMediaBuyGates(t *testing.T) {
	module := mediabuyservice.NewInMemoryModule(nil, nil)
	ctx := context.Background()
	buy := createBuy(t, module, []commands.PackageInput{
		{ProductRef: "prod-1", Budget: 4000, FormatIDs: []string{"banner_300x250"}},
	})
	packages, err := module.Store.ListPackages(ctx, buy.MediaBuyID)
	if err != nil {
		t.Fatalf("list packages failed: %v", err)
	}
	if _, err := module.AttachCreative.Execute(ctx, commands.AttachCreativeCommand{
		MediaBuyID: buy.MediaBuyID,
		PackageID:  packages[0].PackageID,
		FormatID:   "banner_300x250",
		AssetURI:   "https://cdn.example.com/banner.png",
		Actor:      "buyer-1",
	}); err != nil {
		t.Fatalf("attach failed: %v", err)
	}

	// The approval gate holds until the review task resolves.
	_, err = module.ActivateMediaBuy.Execute(ctx, commands.ActivateMediaBuyCommand{
		MediaBuyID: buy.MediaBuyID,
		Actor:      "buyer-1",
	})
	if !errors.Is(err, mediabuyerrors.ErrNotApproved) {
		t.Fatalf("expected approval gate to hold, got %v", err)
	}

	if _, err := module.Store.SetApprovalState(ctx, buy.MediaBuyID, entities.ApprovalStateApproved, time.Now().UTC()); err != nil {
		t.Fatalf("set approval state failed: %v", err)
	}

	// The signal gate holds while any activation is still pending.
	gated := module.ActivateMediaBuy
	gated.Activations = activationsNotReady{}
	_, err = gated.Execute(ctx, commands.ActivateMediaBuyCommand{
		MediaBuyID: buy.MediaBuyID,
		Actor:      "buyer-1",
	})
	if !errors.Is(err, mediabuyerrors.ErrSignalsNotReady) {
		t.Fatalf("expected signal gate to hold, got %v", err)
	}

	activated, err := module.ActivateMediaBuy.Execute(ctx, commands.ActivateMediaBuyCommand{
		MediaBuyID: buy.MediaBuyID,
		Actor:      "buyer-1",
	})
	if err != nil {
		t.Fatalf("activation failed: %v", err)
	}
	if activated.Status != entities.BuyStatusActive || activated.BackendOrderID == "" {
		t.Fatalf("expected active buy with backend order, got %+v", activated)
	}

	// Re-activation of an active buy is a stale transition.
	_, err = module.ActivateMediaBuy.Execute(ctx, commands.ActivateMediaBuyCommand{
		MediaBuyID: buy.MediaBuyID,
		Actor:      "buyer-1",
	})
	if !errors.Is(err, mediabuyerrors.ErrStaleTransition) {
		t.Fatalf("expected stale transition, got %v", err)
	}
}

type flakyApprovalQueue struct {
	failures int
	enqueued int
}

func (q *flakyApprovalQueue) EnqueueApprovalTask(_ context.Context, _ string, _ string, _ time.Time) (string, error) {
	if q.failures > 0 {
		q.failures--
		return "", errors.New("approval queue unavailable")
	}
	q.enqueued++
	return "task-1", nil
}

func TestAttachRetryRepairsMissingApprovalState(t *testing.T) {
	module := mediabuyservice.NewInMemoryModule(nil, nil)
	ctx := context.Background()
	buy := createBuy(t, module, []commands.PackageInput{
		{ProductRef: "prod-1", Budget: 4000, FormatIDs: []string{"banner_300x250"}},
	})
	packages, err := module.Store.ListPackages(ctx, buy.MediaBuyID)
	if err != nil {
		t.Fatalf("list packages failed: %v", err)
	}

	queue := &flakyApprovalQueue{failures: 1}
	attach := module.AttachCreative
	attach.Approvals = queue
	cmd := commands.AttachCreativeCommand{
		MediaBuyID: buy.MediaBuyID,
		PackageID:  packages[0].PackageID,
		FormatID:   "banner_300x250",
		AssetURI:   "https://cdn.example.com/banner.png",
		Actor:      "buyer-1",
	}

	// The transition commits, then the approval queue goes down: the buy is
	// left in review with no approval state.
	if _, err := attach.Execute(ctx, cmd); err == nil {
		t.Fatalf("expected enqueue failure to surface")
	}
	stranded, err := module.Store.GetMediaBuy(ctx, buy.MediaBuyID)
	if err != nil {
		t.Fatalf("get media buy failed: %v", err)
	}
	if stranded.Status != entities.BuyStatusPendingApproval || stranded.ApprovalState != entities.ApprovalStateNone {
		t.Fatalf("expected stranded review buy, got %s %s", stranded.Status, stranded.ApprovalState)
	}

	// A retried attach finishes the approval policy instead of refusing.
	repaired, err := attach.Execute(ctx, cmd)
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if repaired.ApprovalState != entities.ApprovalStateRequired {
		t.Fatalf("expected retry to open the review gate, got %s", repaired.ApprovalState)
	}
	if queue.enqueued != 1 {
		t.Fatalf("expected one review task, got %d", queue.enqueued)
	}
	audit, err := module.Store.ListAudit(ctx, buy.MediaBuyID)
	if err != nil {
		t.Fatalf("list audit failed: %v", err)
	}
	if len(audit) != 1 {
		t.Fatalf("expected a single committed transition, got %d", len(audit))
	}
}

func TestBackendOrderPlacementDedupesPerBuy(t *testing.T) {
	module := mediabuyservice.NewInMemoryModule(nil, nil)
	ctx := context.Background()
	buy := entities.MediaBuy{MediaBuyID: "buy-1", TenantID: "tenant-1"}

	first, err := module.Gateway.ActivateOrder(ctx, buy, nil)
	if err != nil {
		t.Fatalf("first activation failed: %v", err)
	}
	second, err := module.Gateway.ActivateOrder(ctx, buy, nil)
	if err != nil {
		t.Fatalf("second activation failed: %v", err)
	}
	if first != second {
		t.Fatalf("expected one backend order per buy, got %s and %s", first, second)
	}

	other, err := module.Gateway.ActivateOrder(ctx, entities.MediaBuy{MediaBuyID: "buy-2"}, nil)
	if err != nil {
		t.Fatalf("activation for second buy failed: %v", err)
	}
	if other == first {
		t.Fatalf("expected distinct orders for distinct buys, got %s twice", first)
	}
}

func TestActivateMediaBuyFatalAdapterFailsBuy(t *testing.T) {
	module := mediabuyservice.NewInMemoryModule(nil, nil)
	ctx := context.Background()
	buy := createBuy(t, module, []commands.PackageInput{
		{ProductRef: "prod-1", Budget: 4000, FormatIDs: []string{"banner_300x250"}},
	})
	packages, err := module.Store.ListPackages(ctx, buy.MediaBuyID)
	if err != nil {
		t.Fatalf("list packages failed: %v", err)
	}
	if _, err := module.AttachCreative.Execute(ctx, commands.AttachCreativeCommand{
		MediaBuyID: buy.MediaBuyID,
		PackageID:  packages[0].PackageID,
		FormatID:   "banner_300x250",
		AssetURI:   "https://cdn.example.com/banner.png",
		Actor:      "buyer-1",
	}); err != nil {
		t.Fatalf("attach failed: %v", err)
	}
	if _, err := module.Store.SetApprovalState(ctx, buy.MediaBuyID, entities.ApprovalStateApproved, time.Now().UTC()); err != nil {
		t.Fatalf("set approval state failed: %v", err)
	}
	module.Gateway.FailActivations()

	_, err = module.ActivateMediaBuy.Execute(ctx, commands.ActivateMediaBuyCommand{
		MediaBuyID: buy.MediaBuyID,
		Actor:      "buyer-1",
	})
	if !errors.Is(err, mediabuyerrors.ErrAdapterFatal) {
		t.Fatalf("expected fatal adapter error, got %v", err)
	}

	failed, err := module.Store.GetMediaBuy(ctx, buy.MediaBuyID)
	if err != nil {
		t.Fatalf("get media buy failed: %v", err)
	}
	if failed.Status != entities.BuyStatusFailed || failed.FailureReason != entities.FailureReasonAdapterFatal {
		t.Fatalf("expected failed with adapter_fatal, got %s %s", failed.Status, failed.FailureReason)
	}
}
