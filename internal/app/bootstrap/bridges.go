package bootstrap

import (
	"context"
	"time"

	approvalcommands "adbroker/contexts/media-buying/approval-service/application/commands"
	approvalentities "adbroker/contexts/media-buying/approval-service/domain/entities"
	signalcommands "adbroker/contexts/media-buying/signal-service/application/commands"
	signalqueries "adbroker/contexts/media-buying/signal-service/application/queries"
	signalentities "adbroker/contexts/media-buying/signal-service/domain/entities"
)

// The media-buy service talks to its sibling services through ports.
// These bridges close the loop in-process; they would become RPC clients
// if the bounded contexts were ever split into separate deployables.

type approvalQueueBridge struct {
	create approvalcommands.CreateTaskUseCase
}

func (b approvalQueueBridge) EnqueueApprovalTask(ctx context.Context, tenantID string, mediaBuyID string, dueDate time.Time) (string, error) {
	task, err := b.create.Execute(ctx, approvalcommands.CreateTaskCommand{
		TenantID:   tenantID,
		Type:       approvalentities.TaskTypeMediaBuyApproval,
		SubjectRef: "media_buy/" + mediaBuyID,
		DueDate:    dueDate,
	})
	if err != nil {
		return "", err
	}
	return task.TaskID, nil
}

type signalSchedulerBridge struct {
	schedule signalcommands.ScheduleActivationUseCase
	expire   signalcommands.ExpireActivationsUseCase
}

func (b signalSchedulerBridge) ScheduleActivation(ctx context.Context, tenantID string, mediaBuyID string, packageID string, signalRef string) error {
	_, err := b.schedule.Execute(ctx, signalcommands.ScheduleActivationCommand{
		TenantID:   tenantID,
		MediaBuyID: mediaBuyID,
		PackageID:  packageID,
		SignalRef:  signalRef,
	})
	return err
}

func (b signalSchedulerBridge) ExpireActivations(ctx context.Context, mediaBuyID string) error {
	_, err := b.expire.Execute(ctx, mediaBuyID)
	return err
}

type activationStatusBridge struct {
	list signalqueries.ListActivationsByMediaBuyUseCase
}

// AllActivated is vacuously true for buys with no signal-gated packages.
func (b activationStatusBridge) AllActivated(ctx context.Context, mediaBuyID string) (bool, error) {
	activations, err := b.list.Execute(ctx, mediaBuyID)
	if err != nil {
		return false, err
	}
	for _, activation := range activations {
		if activation.Status != signalentities.ActivationStatusActivated {
			return false, nil
		}
	}
	return true, nil
}
