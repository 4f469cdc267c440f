package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/kirillkom/document-sorter/internal/core/domain"
)

func vectorsWithLabels(labels ...int) []domain.EmbeddingVector {
	out := make([]domain.EmbeddingVector, len(labels))
	for i, label := range labels {
		out[i] = domain.EmbeddingVector{Values: []float32{float32(label), 1}}
	}
	return out
}

func repeatLabel(label, n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = label
	}
	return out
}

func assertPartition(t *testing.T, docs []domain.Document, nodes []*domain.GroupNode, maxSize, maxDepth int) {
	t.Helper()
	seen := make(map[string]int)
	for _, leaf := range domain.Leaves(nodes) {
		if len(leaf.Documents) == 0 {
			t.Fatalf("empty leaf at depth %d", leaf.Depth)
		}
		if len(leaf.Documents) > maxSize {
			t.Fatalf("leaf exceeds size bound: %d > %d", len(leaf.Documents), maxSize)
		}
		if leaf.Depth > maxDepth {
			t.Fatalf("leaf exceeds depth bound: %d > %d", leaf.Depth, maxDepth)
		}
		for _, doc := range leaf.Documents {
			seen[doc.ID]++
		}
	}
	if len(seen) != len(docs) {
		t.Fatalf("expected %d distinct documents, got %d", len(docs), len(seen))
	}
	for id, count := range seen {
		if count != 1 {
			t.Fatalf("document %s appears %d times", id, count)
		}
	}
}

func TestSplitSmallSetIsOneLeaf(t *testing.T) {
	clusterer := &clustererFake{fn: labelByFirst}
	s := NewSplitter(clusterer, SplitterConfig{MaxGroupSize: 25, MaxDepth: 2}, nil)

	docs := docsNamed(10)
	nodes, _, err := s.Split(context.Background(), docs, vectorsWithLabels(repeatLabel(0, 10)...), 0)
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}
	if len(nodes) != 1 || len(nodes[0].Documents) != 10 {
		t.Fatalf("expected one leaf with 10 documents, got %+v", nodes)
	}
	if len(clusterer.calls) != 0 {
		t.Fatalf("clusterer must not be called for a small set")
	}
}

func TestSplitChunksWhenClusteringCannotShrink(t *testing.T) {
	clusterer := &clustererFake{fn: labelByFirst}
	s := NewSplitter(clusterer, SplitterConfig{MaxGroupSize: 25, MaxDepth: 1}, nil)

	docs := docsNamed(60)
	nodes, report, err := s.Split(context.Background(), docs, vectorsWithLabels(repeatLabel(0, 60)...), 0)
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}
	if len(nodes) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(nodes))
	}
	for i, want := range []int{25, 25, 10} {
		if len(nodes[i].Documents) != want || !nodes[i].ForcedSplit {
			t.Fatalf("chunk %d: got %d docs forced=%v", i, len(nodes[i].Documents), nodes[i].ForcedSplit)
		}
	}
	if nodes[0].Documents[0].ID != docs[0].ID || nodes[2].Documents[9].ID != docs[59].ID {
		t.Fatalf("chunks must preserve input order")
	}
	if len(clusterer.calls) != 1 || report.Fallback != 1 {
		t.Fatalf("unexpected cluster calls %v report %+v", clusterer.calls, report)
	}
	assertPartition(t, docs, nodes, 25, 1)
}

func TestSplitDepthZeroChunksWithoutClustering(t *testing.T) {
	clusterer := &clustererFake{fn: labelByFirst}
	s := NewSplitter(clusterer, SplitterConfig{MaxGroupSize: 25, MaxDepth: 0}, nil)

	docs := docsNamed(30)
	nodes, _, err := s.Split(context.Background(), docs, vectorsWithLabels(repeatLabel(0, 30)...), 0)
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}
	if len(clusterer.calls) != 0 {
		t.Fatalf("expected no cluster calls at the depth bound")
	}
	assertPartition(t, docs, nodes, 25, 0)
}

func TestSplitRecursesIntoOversizedClusters(t *testing.T) {
	clusterer := &clustererFake{fn: labelByFirst}
	s := NewSplitter(clusterer, SplitterConfig{MaxGroupSize: 25, MaxDepth: 2}, nil)

	labels := append(append(repeatLabel(0, 30), repeatLabel(1, 20)...), repeatLabel(-1, 10)...)
	docs := docsNamed(60)
	nodes, _, err := s.Split(context.Background(), docs, vectorsWithLabels(labels...), 0)
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}

	if len(nodes) != 3 {
		t.Fatalf("expected 3 top-level groups, got %d", len(nodes))
	}
	if nodes[0].IsLeaf() || len(nodes[0].Children) != 2 {
		t.Fatalf("expected oversized cluster to be split into 2 children, got %+v", nodes[0])
	}
	if nodes[0].Children[0].Depth != 1 || !nodes[0].Children[0].ForcedSplit {
		t.Fatalf("unexpected child: %+v", nodes[0].Children[0])
	}
	if !nodes[2].Noise || len(nodes[2].Documents) != 10 {
		t.Fatalf("expected noise leaf last, got %+v", nodes[2])
	}
	if len(clusterer.calls) != 2 {
		t.Fatalf("expected 2 cluster calls, got %v", clusterer.calls)
	}
	assertPartition(t, docs, nodes, 25, 2)
}

func TestSplitRespectsDepthBound(t *testing.T) {
	parity := func(vectors [][]float32) []int {
		labels := make([]int, len(vectors))
		for i := range labels {
			labels[i] = i % 2
		}
		return labels
	}
	clusterer := &clustererFake{fn: parity}
	s := NewSplitter(clusterer, SplitterConfig{MaxGroupSize: 10, MaxDepth: 2}, nil)

	docs := docsNamed(200)
	nodes, _, err := s.Split(context.Background(), docs, vectorsWithLabels(repeatLabel(0, 200)...), 0)
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}
	// one call at depth 0, one per half at depth 1, chunking at depth 2
	if len(clusterer.calls) != 3 {
		t.Fatalf("expected 3 cluster calls, got %v", clusterer.calls)
	}
	assertPartition(t, docs, nodes, 10, 2)
}

func TestSplitSentinelVectorsJoinNoise(t *testing.T) {
	clusterer := &clustererFake{fn: labelByFirst}
	s := NewSplitter(clusterer, SplitterConfig{MaxGroupSize: 4, MaxDepth: 2}, nil)

	vectors := vectorsWithLabels(0, 0, 0, 1, 1, 1, 0)
	vectors[6] = domain.EmbeddingVector{Sentinel: true}
	docs := docsNamed(7)

	nodes, _, err := s.Split(context.Background(), docs, vectors, 0)
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}
	if clusterer.calls[0] != 6 {
		t.Fatalf("sentinel vectors must not reach the clusterer, got %d points", clusterer.calls[0])
	}
	var noise *domain.GroupNode
	for _, node := range nodes {
		if node.Noise {
			noise = node
		}
	}
	if noise == nil || len(noise.Documents) != 1 || noise.Documents[0].ID != docs[6].ID {
		t.Fatalf("expected sentinel document in a noise group, got %+v", nodes)
	}
	assertPartition(t, docs, nodes, 4, 2)
}

func TestSplitClustererErrorFallsBackToChunks(t *testing.T) {
	clusterer := &clustererFake{err: errors.New("boom")}
	s := NewSplitter(clusterer, SplitterConfig{MaxGroupSize: 5, MaxDepth: 2}, nil)

	docs := docsNamed(12)
	nodes, report, err := s.Split(context.Background(), docs, vectorsWithLabels(repeatLabel(0, 12)...), 0)
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}
	if len(nodes) != 3 || !nodes[0].ForcedSplit {
		t.Fatalf("expected 3 forced chunks, got %d", len(nodes))
	}
	if report.Failed != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}
	assertPartition(t, docs, nodes, 5, 2)
}

func TestSplitTwoLevelModeSubdividesLargeLeaves(t *testing.T) {
	clusterer := &clustererFake{fn: labelByFirst}
	s := NewSplitter(clusterer, SplitterConfig{
		MaxGroupSize: 25,
		MaxDepth:     2,
		GroupLevels:  2,
		Params:       domain.ClusterParams{MinClusterSize: 3, MinSamples: 1},
	}, nil)

	docs := docsNamed(12)
	labels := append(repeatLabel(0, 6), repeatLabel(1, 6)...)
	nodes, _, err := s.Split(context.Background(), docs, vectorsWithLabels(labels...), 0)
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}
	if len(nodes) != 1 || len(nodes[0].Children) != 2 {
		t.Fatalf("expected one folder with 2 subfolders, got %+v", nodes)
	}
	if nodes[0].Children[1].Depth != 1 {
		t.Fatalf("unexpected child depth %d", nodes[0].Children[1].Depth)
	}
	assertPartition(t, docs, nodes, 25, 2)
}

func TestSplitRejectsMismatchedInput(t *testing.T) {
	s := NewSplitter(&clustererFake{fn: labelByFirst}, SplitterConfig{}, nil)
	_, _, err := s.Split(context.Background(), docsNamed(2), vectorsWithLabels(0), 0)
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}
