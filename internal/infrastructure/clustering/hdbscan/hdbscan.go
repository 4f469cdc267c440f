// Package hdbscan implements density-based hierarchical clustering over
// embedding vectors with excess-of-mass cluster selection.
package hdbscan

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/kirillkom/document-sorter/internal/core/domain"
)

// zeroDistance stands in for a zero distance when computing lambda = 1/d.
const zeroDistance = 1e-10

type Clusterer struct{}

func New() *Clusterer {
	return &Clusterer{}
}

// Cluster returns one label per vector. Labels are numbered in order of first
// appearance; domain.NoiseLabel marks points outside every selected cluster.
func (c *Clusterer) Cluster(ctx context.Context, vectors [][]float32, params domain.ClusterParams) ([]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	points, err := normalizeRows(vectors)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "hdbscan", err)
	}

	minClusterSize := max(params.MinClusterSize, 2)
	minSamples := max(params.MinSamples, 1)

	n := len(points)
	labels := make([]int, n)
	for i := range labels {
		labels[i] = domain.NoiseLabel
	}
	if n < minClusterSize || n < 2 {
		return labels, nil
	}

	dist := pairwiseDistances(points)
	core := coreDistances(dist, minSamples)
	edges, err := primMST(ctx, dist, core)
	if err != nil {
		return nil, err
	}
	tree := singleLinkage(n, edges)
	condensed := condense(tree, n, minClusterSize)
	selected := selectClusters(condensed)
	if len(selected) == 0 {
		return labels, nil
	}
	return assignLabels(condensed, selected, n), nil
}

func normalizeRows(vectors [][]float32) ([][]float64, error) {
	if len(vectors) == 0 {
		return nil, nil
	}
	dim := len(vectors[0])
	if dim == 0 {
		return nil, errors.New("empty vector")
	}
	out := make([][]float64, len(vectors))
	for i, vector := range vectors {
		if len(vector) != dim {
			return nil, fmt.Errorf("vector %d has dimension %d, want %d", i, len(vector), dim)
		}
		row := make([]float64, dim)
		var norm float64
		for j, v := range vector {
			row[j] = float64(v)
			norm += row[j] * row[j]
		}
		if norm > 0 {
			norm = math.Sqrt(norm)
			for j := range row {
				row[j] /= norm
			}
		}
		out[i] = row
	}
	return out, nil
}

func pairwiseDistances(points [][]float64) [][]float64 {
	n := len(points)
	dist := make([][]float64, n)
	for i := range dist {
		dist[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			var sum float64
			for k := range points[i] {
				d := points[i][k] - points[j][k]
				sum += d * d
			}
			d := math.Sqrt(sum)
			dist[i][j] = d
			dist[j][i] = d
		}
	}
	return dist
}

// coreDistances is the distance to the minSamples-th nearest point, counting
// the point itself.
func coreDistances(dist [][]float64, minSamples int) []float64 {
	n := len(dist)
	k := min(minSamples, n)
	core := make([]float64, n)
	row := make([]float64, n)
	for i := range dist {
		copy(row, dist[i])
		sort.Float64s(row)
		core[i] = row[k-1]
	}
	return core
}

type edge struct {
	a, b   int
	weight float64
}

// primMST builds the minimum spanning tree of the mutual reachability graph.
func primMST(ctx context.Context, dist [][]float64, core []float64) ([]edge, error) {
	n := len(dist)
	inTree := make([]bool, n)
	best := make([]float64, n)
	from := make([]int, n)
	for i := range best {
		best[i] = math.Inf(1)
		from[i] = -1
	}

	edges := make([]edge, 0, n-1)
	current := 0
	inTree[current] = true
	for len(edges) < n-1 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for j := 0; j < n; j++ {
			if inTree[j] {
				continue
			}
			w := max(dist[current][j], core[current], core[j])
			if w < best[j] {
				best[j] = w
				from[j] = current
			}
		}
		next := -1
		for j := 0; j < n; j++ {
			if !inTree[j] && (next < 0 || best[j] < best[next]) {
				next = j
			}
		}
		edges = append(edges, edge{a: from[next], b: next, weight: best[next]})
		inTree[next] = true
		current = next
	}

	sort.SliceStable(edges, func(i, j int) bool { return edges[i].weight < edges[j].weight })
	return edges, nil
}

// linkageNode is an inner node of the single-linkage dendrogram. Node ids
// below n are points; inner node k has id n+k.
type linkageNode struct {
	left, right int
	distance    float64
	size        int
}

func singleLinkage(n int, edges []edge) []linkageNode {
	parent := make([]int, 2*n-1)
	for i := range parent {
		parent[i] = i
	}
	find := func(x int) int {
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}
		return x
	}
	size := func(nodes []linkageNode, id int) int {
		if id < n {
			return 1
		}
		return nodes[id-n].size
	}

	nodes := make([]linkageNode, 0, n-1)
	for _, e := range edges {
		ra, rb := find(e.a), find(e.b)
		id := n + len(nodes)
		nodes = append(nodes, linkageNode{
			left:     ra,
			right:    rb,
			distance: e.weight,
			size:     size(nodes, ra) + size(nodes, rb),
		})
		parent[ra] = id
		parent[rb] = id
	}
	return nodes
}

// condensedEdge links a cluster to a child cluster or to a point that left
// it at lambda.
type condensedEdge struct {
	parent int
	child  int
	lambda float64
	size   int
}

type condensedTree struct {
	edges []condensedEdge
	root  int
	// clusters counts cluster ids; ids are root, root+1, ... in creation order.
	clusters int
}

func lambdaOf(distance float64) float64 {
	if distance <= 0 {
		distance = zeroDistance
	}
	return 1 / distance
}

func condense(nodes []linkageNode, n, minClusterSize int) condensedTree {
	root := 2*n - 2
	tree := condensedTree{root: n, clusters: 1}
	label := map[int]int{root: n}

	size := func(id int) int {
		if id < n {
			return 1
		}
		return nodes[id-n].size
	}
	var leavesOf func(id int, out []int) []int
	leavesOf = func(id int, out []int) []int {
		if id < n {
			return append(out, id)
		}
		node := nodes[id-n]
		out = leavesOf(node.left, out)
		return leavesOf(node.right, out)
	}
	fallOut := func(cluster, id int, lambda float64) {
		for _, point := range leavesOf(id, nil) {
			tree.edges = append(tree.edges, condensedEdge{parent: cluster, child: point, lambda: lambda, size: 1})
		}
	}

	queue := []int{root}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		cluster, ok := label[id]
		if !ok || id < n {
			continue
		}

		node := nodes[id-n]
		lambda := lambdaOf(node.distance)
		leftBig := size(node.left) >= minClusterSize
		rightBig := size(node.right) >= minClusterSize

		switch {
		case leftBig && rightBig:
			for _, child := range []int{node.left, node.right} {
				clusterID := n + tree.clusters
				tree.clusters++
				label[child] = clusterID
				tree.edges = append(tree.edges, condensedEdge{parent: cluster, child: clusterID, lambda: lambda, size: size(child)})
				queue = append(queue, child)
			}
		case leftBig:
			fallOut(cluster, node.right, lambda)
			label[node.left] = cluster
			queue = append(queue, node.left)
		case rightBig:
			fallOut(cluster, node.left, lambda)
			label[node.right] = cluster
			queue = append(queue, node.right)
		default:
			fallOut(cluster, node.left, lambda)
			fallOut(cluster, node.right, lambda)
		}
	}
	return tree
}

// selectClusters applies excess-of-mass selection. The root is never
// selected.
func selectClusters(tree condensedTree) map[int]bool {
	n := tree.root
	birth := make(map[int]float64, tree.clusters)
	birth[n] = 0
	children := make(map[int][]int)
	for _, e := range tree.edges {
		if e.child >= n {
			birth[e.child] = e.lambda
			children[e.parent] = append(children[e.parent], e.child)
		}
	}

	stability := make(map[int]float64, tree.clusters)
	for _, e := range tree.edges {
		stability[e.parent] += (e.lambda - birth[e.parent]) * float64(e.size)
	}

	selected := make(map[int]bool)
	for id := n + tree.clusters - 1; id > n; id-- {
		var childSum float64
		for _, child := range children[id] {
			childSum += stability[child]
		}
		if len(children[id]) > 0 && childSum > stability[id] {
			stability[id] = childSum
			continue
		}
		selected[id] = true
		clearDescendants(id, children, selected)
	}
	return selected
}

func clearDescendants(id int, children map[int][]int, selected map[int]bool) {
	for _, child := range children[id] {
		delete(selected, child)
		clearDescendants(child, children, selected)
	}
}

func assignLabels(tree condensedTree, selected map[int]bool, n int) []int {
	parentOf := make(map[int]int, len(tree.edges))
	for _, e := range tree.edges {
		parentOf[e.child] = e.parent
	}

	labels := make([]int, n)
	next := 0
	remap := make(map[int]int, len(selected))
	for point := 0; point < n; point++ {
		labels[point] = domain.NoiseLabel
		cluster, ok := parentOf[point]
		for ok {
			if selected[cluster] {
				label, seen := remap[cluster]
				if !seen {
					label = next
					remap[cluster] = label
					next++
				}
				labels[point] = label
				break
			}
			cluster, ok = parentOf[cluster]
		}
	}
	return labels
}
