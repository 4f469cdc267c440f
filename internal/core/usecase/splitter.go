package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kirillkom/document-sorter/internal/core/domain"
	"github.com/kirillkom/document-sorter/internal/core/ports"
)

const (
	defaultMaxGroupSize = 25
	defaultMaxDepth     = 2
)

type SplitterConfig struct {
	MaxGroupSize int
	MaxDepth     int
	// GroupLevels=2 partitions top-level leaves once more into subfolders.
	GroupLevels int
	Params      domain.ClusterParams
}

// Splitter enforces the leaf size bound by recursive re-clustering, falling
// back to sequential chunking when clustering cannot shrink a group.
type Splitter struct {
	clusterer ports.Clusterer
	cfg       SplitterConfig
	logger    *slog.Logger
}

func NewSplitter(clusterer ports.Clusterer, cfg SplitterConfig, logger *slog.Logger) *Splitter {
	if cfg.MaxGroupSize <= 0 {
		cfg.MaxGroupSize = defaultMaxGroupSize
	}
	if cfg.MaxDepth < 0 {
		cfg.MaxDepth = defaultMaxDepth
	}
	if cfg.GroupLevels <= 0 {
		cfg.GroupLevels = 1
	}
	if cfg.Params.MinClusterSize <= 0 {
		cfg.Params = domain.PresetDefault.Params()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Splitter{clusterer: clusterer, cfg: cfg, logger: logger}
}

// WithParams returns a copy using different clustering parameters.
func (s *Splitter) WithParams(params domain.ClusterParams) *Splitter {
	clone := *s
	if params.MinClusterSize > 0 {
		clone.cfg.Params = params
	}
	return &clone
}

func (s *Splitter) Config() SplitterConfig {
	return s.cfg
}

type member struct {
	doc    domain.Document
	vector domain.EmbeddingVector
}

// Split partitions docs (aligned with vectors) into group nodes starting at
// depth. The leaves of the result contain every document exactly once.
func (s *Splitter) Split(
	ctx context.Context,
	docs []domain.Document,
	vectors []domain.EmbeddingVector,
	depth int,
) ([]*domain.GroupNode, domain.StageReport, error) {
	report := domain.StageReport{Stage: domain.StageCluster}
	if len(docs) != len(vectors) {
		return nil, report, domain.WrapError(domain.ErrInvalidInput, "split", errMismatchedVectors(len(docs), len(vectors)))
	}
	if len(docs) == 0 {
		return nil, report, nil
	}

	members := make([]member, len(docs))
	for i := range docs {
		members[i] = member{doc: docs[i], vector: vectors[i]}
	}

	nodes, err := s.split(ctx, members, depth, true, &report)
	if err != nil {
		return nil, report, err
	}
	return nodes, report, nil
}

func (s *Splitter) split(ctx context.Context, members []member, depth int, top bool, report *domain.StageReport) ([]*domain.GroupNode, error) {
	if len(members) <= s.cfg.MaxGroupSize {
		node, err := s.groupLeaf(ctx, members, depth, top, report)
		if err != nil {
			return nil, err
		}
		return []*domain.GroupNode{node}, nil
	}
	if depth >= s.cfg.MaxDepth {
		return s.chunk(members, depth), nil
	}

	parts, err := s.partition(ctx, members, report)
	if err != nil {
		return nil, err
	}
	if len(parts) < 2 {
		report.Fallback++
		return s.chunk(members, depth), nil
	}

	nodes := make([]*domain.GroupNode, 0, len(parts))
	for _, part := range parts {
		if len(part.members) <= s.cfg.MaxGroupSize {
			var node *domain.GroupNode
			if part.noise {
				node = leaf(part.members, depth, false)
				node.Noise = true
			} else if node, err = s.groupLeaf(ctx, part.members, depth, top, report); err != nil {
				return nil, err
			}
			nodes = append(nodes, node)
			continue
		}
		children, err := s.split(ctx, part.members, depth+1, false, report)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, &domain.GroupNode{
			Children: children,
			Depth:    depth,
			Noise:    part.noise,
		})
	}
	return nodes, nil
}

type memberPart struct {
	members []member
	noise   bool
}

// partition clusters the members and groups them by label in order of first
// appearance. Members without a usable vector join the noise part. A
// clusterer error is logged and yields a single part.
func (s *Splitter) partition(ctx context.Context, members []member, report *domain.StageReport) ([]memberPart, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		vectors [][]float32
		index   []int
	)
	for i, m := range members {
		if m.vector.Sentinel || len(m.vector.Values) == 0 {
			continue
		}
		vectors = append(vectors, m.vector.Values)
		index = append(index, i)
	}

	labels := make([]int, len(members))
	for i := range labels {
		labels[i] = domain.NoiseLabel
	}
	if len(vectors) >= 2 {
		clustered, err := s.clusterer.Cluster(ctx, vectors, s.cfg.Params)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.logger.Warn("cluster_failed", "members", len(members), "error", err)
			report.Failed++
			return []memberPart{{members: members}}, nil
		}
		report.Record(domain.OutcomeLive)
		for i, label := range clustered {
			labels[index[i]] = label
		}
	}

	var parts []memberPart
	position := make(map[int]int)
	for i, m := range members {
		pos, ok := position[labels[i]]
		if !ok {
			pos = len(parts)
			position[labels[i]] = pos
			parts = append(parts, memberPart{noise: labels[i] == domain.NoiseLabel})
		}
		parts[pos].members = append(parts[pos].members, m)
	}
	return parts, nil
}

// groupLeaf builds the leaf for members. In two-level mode a large
// top-level leaf is clustered once more into subfolders.
func (s *Splitter) groupLeaf(ctx context.Context, members []member, depth int, top bool, report *domain.StageReport) (*domain.GroupNode, error) {
	node := leaf(members, depth, false)
	if !top || s.cfg.GroupLevels < 2 {
		return node, nil
	}
	if len(members) < 2*s.cfg.Params.MinClusterSize || depth+1 > s.cfg.MaxDepth {
		return node, nil
	}
	parts, err := s.partition(ctx, members, report)
	if err != nil {
		return nil, err
	}
	if len(parts) < 2 {
		return node, nil
	}
	children := make([]*domain.GroupNode, 0, len(parts))
	for _, part := range parts {
		child := leaf(part.members, depth+1, false)
		child.Noise = part.noise
		children = append(children, child)
	}
	return &domain.GroupNode{Children: children, Depth: depth}, nil
}

func (s *Splitter) chunk(members []member, depth int) []*domain.GroupNode {
	var nodes []*domain.GroupNode
	for start := 0; start < len(members); start += s.cfg.MaxGroupSize {
		end := min(start+s.cfg.MaxGroupSize, len(members))
		nodes = append(nodes, leaf(members[start:end], depth, true))
	}
	return nodes
}

func errMismatchedVectors(docs, vectors int) error {
	return fmt.Errorf("%d documents but %d vectors", docs, vectors)
}

func leaf(members []member, depth int, forced bool) *domain.GroupNode {
	docs := make([]domain.Document, 0, len(members))
	for _, m := range members {
		docs = append(docs, m.doc)
	}
	return &domain.GroupNode{Documents: docs, Depth: depth, ForcedSplit: forced}
}
