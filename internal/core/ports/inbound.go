package ports

import (
	"context"

	"github.com/kirillkom/document-sorter/internal/core/domain"
)

// Organizer is the inbound contract for the synchronous pipeline.
type Organizer interface {
	Organize(ctx context.Context, req domain.OrganizeRequest) (*domain.OrganizeResult, error)
	Preview(ctx context.Context, req domain.OrganizeRequest) (*domain.Plan, error)
}

// RunSubmitter stores inputs and queues an asynchronous run.
type RunSubmitter interface {
	Submit(ctx context.Context, req domain.OrganizeRequest) (*domain.Run, error)
}

// RunReader is the read model for run state.
type RunReader interface {
	GetByID(ctx context.Context, id string) (*domain.Run, error)
}

// RunProcessor processes one queued run.
type RunProcessor interface {
	ProcessByID(ctx context.Context, runID string) error
}
