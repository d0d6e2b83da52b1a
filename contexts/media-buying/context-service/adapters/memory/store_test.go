package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	domainerrors "adbroker/contexts/media-buying/context-service/domain/errors"
	"adbroker/contexts/media-buying/context-service/ports"
)

func TestAppendMessageAssignsGapFreeSequence(t *testing.T) {
	store := NewStore()
	now := time.Now().UTC()

	session, first, err := store.AppendMessage(context.Background(), ports.AppendInput{
		TenantID:    "tenant-1",
		PrincipalID: "principal-1",
		Direction:   ports.DirectionInbound,
		Payload:     []byte(`{"op":"create"}`),
	}, now)
	if err != nil {
		t.Fatalf("first append failed: %v", err)
	}
	if first.SequenceNum != 1 {
		t.Fatalf("expected first message sequence 1, got %d", first.SequenceNum)
	}

	const writers = 20
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := store.AppendMessage(context.Background(), ports.AppendInput{
				ContextID:   session.ContextID,
				TenantID:    "tenant-1",
				PrincipalID: "principal-1",
				Direction:   ports.DirectionOutbound,
				Payload:     []byte(`{"op":"reply"}`),
			}, time.Now().UTC())
			if err != nil {
				t.Errorf("concurrent append failed: %v", err)
			}
		}()
	}
	wg.Wait()

	messages, err := store.ListMessages(context.Background(), session.ContextID, "tenant-1")
	if err != nil {
		t.Fatalf("list messages failed: %v", err)
	}
	if len(messages) != writers+1 {
		t.Fatalf("expected %d messages, got %d", writers+1, len(messages))
	}
	seen := make(map[int64]bool, len(messages))
	for _, message := range messages {
		seen[message.SequenceNum] = true
	}
	for want := int64(1); want <= int64(writers+1); want++ {
		if !seen[want] {
			t.Fatalf("sequence %d missing: numbering must be gap-free", want)
		}
	}
}

func TestAppendToUnknownContextFails(t *testing.T) {
	store := NewStore()
	_, _, err := store.AppendMessage(context.Background(), ports.AppendInput{
		ContextID:   "missing",
		TenantID:    "tenant-1",
		PrincipalID: "principal-1",
		Direction:   ports.DirectionInbound,
		Payload:     []byte(`{}`),
	}, time.Now().UTC())
	if err != domainerrors.ErrContextNotFound {
		t.Fatalf("expected ErrContextNotFound, got %v", err)
	}
}

func TestContextReadsAreTenantScoped(t *testing.T) {
	store := NewStore()
	session, _, err := store.AppendMessage(context.Background(), ports.AppendInput{
		TenantID:    "tenant-1",
		PrincipalID: "principal-1",
		Direction:   ports.DirectionInbound,
		Payload:     []byte(`{}`),
	}, time.Now().UTC())
	if err != nil {
		t.Fatalf("append failed: %v", err)
	}

	if _, err := store.GetContext(context.Background(), session.ContextID, "tenant-2"); err != domainerrors.ErrContextNotFound {
		t.Fatalf("expected cross-tenant read to fail, got %v", err)
	}
	if _, err := store.ListMessages(context.Background(), session.ContextID, "tenant-2"); err != domainerrors.ErrContextNotFound {
		t.Fatalf("expected cross-tenant list to fail, got %v", err)
	}
}
