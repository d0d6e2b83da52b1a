package unit

import (
	"context"
	"errors"
	"testing"

	contextservice "adbroker/contexts/media-buying/context-service"
	contexterrors "adbroker/contexts/media-buying/context-service/domain/errors"
	httptransport "adbroker/contexts/media-buying/context-service/transport/http"
)

func TestContextAppendAssignsOrderedSequence(t *testing.T) {
	module := contextservice.NewInMemoryModule(nil)
	ctx := context.Background()

	first, err := module.Handler.AppendHandler(ctx, "tenant-1", "principal-1", httptransport.AppendRequest{
		Direction: "inbound",
		Payload:   []byte(`{"op":"create_media_buy"}`),
	})
	if err != nil {
		t.Fatalf("first append failed: %v", err)
	}
	if first.SequenceNum != 1 || first.ContextID == "" {
		t.Fatalf("expected new context with sequence 1, got %+v", first)
	}

	second, err := module.Handler.AppendHandler(ctx, "tenant-1", "principal-1", httptransport.AppendRequest{
		ContextID: first.ContextID,
		Direction: "outbound",
		Payload:   []byte(`{"status":"pending_creative"}`),
	})
	if err != nil {
		t.Fatalf("second append failed: %v", err)
	}
	if second.SequenceNum != 2 {
		t.Fatalf("expected sequence 2, got %d", second.SequenceNum)
	}

	third, err := module.Handler.AppendHandler(ctx, "tenant-1", "principal-1", httptransport.AppendRequest{
		ContextID: first.ContextID,
		Direction: "inbound",
		Payload:   []byte(`{"op":"attach_creative"}`),
	})
	if err != nil {
		t.Fatalf("third append failed: %v", err)
	}
	if third.SequenceNum != 3 {
		t.Fatalf("expected sequence 3, got %d", third.SequenceNum)
	}

	view, err := module.Handler.ReadContextHandler(ctx, "tenant-1", first.ContextID)
	if err != nil {
		t.Fatalf("read context failed: %v", err)
	}
	if len(view.Messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(view.Messages))
	}
	for i, message := range view.Messages {
		if message.SequenceNum != int64(i+1) {
			t.Fatalf("expected message %d at sequence %d, got %d", i, i+1, message.SequenceNum)
		}
	}
}

func TestContextAppendRejectsBadInput(t *testing.T) {
	module := contextservice.NewInMemoryModule(nil)
	ctx := context.Background()

	if _, err := module.Handler.AppendHandler(ctx, "tenant-1", "principal-1", httptransport.AppendRequest{
		Direction: "sideways",
		Payload:   []byte(`{}`),
	}); !errors.Is(err, contexterrors.ErrInvalidRequest) {
		t.Fatalf("expected invalid direction rejection, got %v", err)
	}

	if _, err := module.Handler.AppendHandler(ctx, "tenant-1", "principal-1", httptransport.AppendRequest{
		Direction: "inbound",
	}); !errors.Is(err, contexterrors.ErrInvalidRequest) {
		t.Fatalf("expected empty payload rejection, got %v", err)
	}
}

func TestContextReadIsTenantScoped(t *testing.T) {
	module := contextservice.NewInMemoryModule(nil)
	ctx := context.Background()

	created, err := module.Handler.AppendHandler(ctx, "tenant-1", "principal-1", httptransport.AppendRequest{
		Direction: "inbound",
		Payload:   []byte(`{}`),
	})
	if err != nil {
		t.Fatalf("append failed: %v", err)
	}

	if _, err := module.Handler.ReadContextHandler(ctx, "tenant-2", created.ContextID); !errors.Is(err, contexterrors.ErrContextNotFound) {
		t.Fatalf("expected cross-tenant read to fail, got %v", err)
	}
}
