package hdbscan

import (
	"context"
	"testing"

	"github.com/kirillkom/document-sorter/internal/core/domain"
)

// blob returns count points near axis with small offsets on a shared
// perturbation axis.
func blob(dim, axis, perturb, count int) [][]float32 {
	out := make([][]float32, count)
	for i := range out {
		v := make([]float32, dim)
		v[axis] = 1
		v[perturb] = 0.01 * float32(i+1)
		out[i] = v
	}
	return out
}

func unit(dim, axis int) []float32 {
	v := make([]float32, dim)
	v[axis] = 1
	return v
}

// partition groups point indexes by label, keyed by the first member.
func partition(labels []int) map[int][]int {
	first := make(map[int]int)
	out := make(map[int][]int)
	for i, label := range labels {
		if label == domain.NoiseLabel {
			continue
		}
		key, ok := first[label]
		if !ok {
			key = i
			first[label] = i
		}
		out[key] = append(out[key], i)
	}
	return out
}

func TestClusterSeparatesBlobsAndMarksNoise(t *testing.T) {
	var vectors [][]float32
	vectors = append(vectors, blob(8, 0, 6, 4)...)
	vectors = append(vectors, blob(8, 1, 6, 4)...)
	vectors = append(vectors, unit(8, 7))

	labels, err := New().Cluster(context.Background(), vectors, domain.ClusterParams{MinClusterSize: 3, MinSamples: 1})
	if err != nil {
		t.Fatalf("Cluster() error = %v", err)
	}

	if labels[8] != domain.NoiseLabel {
		t.Fatalf("isolated point should be noise, got %d", labels[8])
	}
	for i := 1; i < 4; i++ {
		if labels[i] != labels[0] {
			t.Fatalf("first blob split: %v", labels)
		}
		if labels[4+i] != labels[4] {
			t.Fatalf("second blob split: %v", labels)
		}
	}
	if labels[0] == labels[4] || labels[0] == domain.NoiseLabel || labels[4] == domain.NoiseLabel {
		t.Fatalf("blobs must be distinct clusters: %v", labels)
	}
	if labels[0] != 0 || labels[4] != 1 {
		t.Fatalf("labels must follow first appearance: %v", labels)
	}
}

func TestClusterThreeBlobs(t *testing.T) {
	var vectors [][]float32
	for axis := 0; axis < 3; axis++ {
		vectors = append(vectors, blob(6, axis, 5, 5)...)
	}

	labels, err := New().Cluster(context.Background(), vectors, domain.ClusterParams{MinClusterSize: 3, MinSamples: 2})
	if err != nil {
		t.Fatalf("Cluster() error = %v", err)
	}
	groups := partition(labels)
	if len(groups) != 3 {
		t.Fatalf("expected 3 clusters, got %d: %v", len(groups), labels)
	}
	for key, members := range groups {
		if len(members) != 5 || key%5 != 0 {
			t.Fatalf("unexpected cluster starting at %d: %v", key, members)
		}
	}
}

func TestClusterPartitionIsStableUnderPermutation(t *testing.T) {
	var vectors [][]float32
	vectors = append(vectors, blob(8, 0, 6, 4)...)
	vectors = append(vectors, blob(8, 1, 6, 4)...)
	vectors = append(vectors, unit(8, 7))

	order := []int{8, 3, 5, 0, 7, 1, 4, 2, 6}
	permuted := make([][]float32, len(order))
	for i, idx := range order {
		permuted[i] = vectors[idx]
	}

	params := domain.ClusterParams{MinClusterSize: 3, MinSamples: 1}
	base, err := New().Cluster(context.Background(), vectors, params)
	if err != nil {
		t.Fatalf("Cluster() error = %v", err)
	}
	shuffled, err := New().Cluster(context.Background(), permuted, params)
	if err != nil {
		t.Fatalf("Cluster() error = %v", err)
	}

	// map permuted labels back to original indexes and compare co-membership
	restored := make([]int, len(vectors))
	for i, idx := range order {
		restored[idx] = shuffled[i]
	}
	for i := range vectors {
		for j := range vectors {
			sameBase := base[i] == base[j] && base[i] != domain.NoiseLabel
			sameShuffled := restored[i] == restored[j] && restored[i] != domain.NoiseLabel
			if sameBase != sameShuffled {
				t.Fatalf("partition changed for points %d,%d: %v vs %v", i, j, base, restored)
			}
		}
	}
}

func TestClusterTooFewPointsIsNoise(t *testing.T) {
	vectors := [][]float32{unit(3, 0), unit(3, 1)}
	labels, err := New().Cluster(context.Background(), vectors, domain.ClusterParams{MinClusterSize: 3, MinSamples: 1})
	if err != nil {
		t.Fatalf("Cluster() error = %v", err)
	}
	for i, label := range labels {
		if label != domain.NoiseLabel {
			t.Fatalf("point %d: expected noise, got %d", i, label)
		}
	}
}

func TestClusterSingleBlobIsNotSelectedAsRoot(t *testing.T) {
	vectors := blob(4, 0, 3, 6)
	labels, err := New().Cluster(context.Background(), vectors, domain.ClusterParams{MinClusterSize: 3, MinSamples: 1})
	if err != nil {
		t.Fatalf("Cluster() error = %v", err)
	}
	if len(partition(labels)) > 1 {
		t.Fatalf("a uniform blob must not be split into several clusters: %v", labels)
	}
}

func TestClusterRejectsMismatchedDimensions(t *testing.T) {
	_, err := New().Cluster(context.Background(), [][]float32{{1, 0}, {1, 0, 0}}, domain.ClusterParams{MinClusterSize: 2})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestClusterHonorsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New().Cluster(ctx, blob(4, 0, 3, 6), domain.ClusterParams{MinClusterSize: 3}); err == nil {
		t.Fatalf("expected context error")
	}
}
