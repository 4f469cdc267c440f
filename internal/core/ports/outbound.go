package ports

import (
	"context"
	"io"

	"github.com/kirillkom/document-sorter/internal/core/domain"
)

// SummarizeRequest is the input of one normalization call.
type SummarizeRequest struct {
	Filename   string
	Text       string
	Categories []string
}

// Summarizer produces a canonical semantic record for a document.
type Summarizer interface {
	Summarize(ctx context.Context, req SummarizeRequest) (domain.NormalizedRecord, error)
}

// EmbeddingProvider maps texts to vectors, one per input, in input order.
type EmbeddingProvider interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// GroupTextGenerator derives folder names and descriptions.
type GroupTextGenerator interface {
	GenerateGroupName(ctx context.Context, titles []string) (string, error)
	GenerateDescription(ctx context.Context, topic string, filenames []string) (string, error)
}

// Clusterer assigns a label per vector; domain.NoiseLabel marks noise.
type Clusterer interface {
	Cluster(ctx context.Context, vectors [][]float32, params domain.ClusterParams) ([]int, error)
}

// CacheStore is a content-addressed table of JSON values.
type CacheStore interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Put(ctx context.Context, key string, value []byte) error
	PutMany(ctx context.Context, entries map[string][]byte) error
	Reset(ctx context.Context) error
}

// TextExtractor extracts plain text from raw document bytes.
type TextExtractor interface {
	Extract(ctx context.Context, filename string, content []byte) (string, error)
}

// PipelineMetrics records per-stage outcomes and run lifecycle.
type PipelineMetrics interface {
	ObserveStage(report domain.StageReport)
	StartRun()
	FinishRun(report domain.RunReport, groups int, err error)
}

// Packager writes a finished tree into an archive stream.
type Packager interface {
	WriteZip(ctx context.Context, tree *domain.Tree, w io.Writer) error
}

// RunRepository persists asynchronous run state.
type RunRepository interface {
	Create(ctx context.Context, run *domain.Run) error
	GetByID(ctx context.Context, id string) (*domain.Run, error)
	UpdateStatus(ctx context.Context, id string, status domain.RunStatus, errMessage string) error
	SaveResult(ctx context.Context, id string, result domain.RunResult) error
}

// ObjectStorage stores run inputs and archives.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// MessageQueue publishes/consumes queued runs.
type MessageQueue interface {
	PublishRunQueued(ctx context.Context, runID string) error
	SubscribeRunQueued(ctx context.Context, handler func(context.Context, string) error) error
}
