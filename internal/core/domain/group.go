package domain

import "sort"

// GroupNode is one folder of the output tree. Leaves hold documents, inner
// nodes hold children.
type GroupNode struct {
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Documents   []Document   `json:"documents,omitempty"`
	Children    []*GroupNode `json:"children,omitempty"`
	Depth       int          `json:"depth"`
	ForcedSplit bool         `json:"forced_split,omitempty"`
	Noise       bool         `json:"noise,omitempty"`
}

func (n *GroupNode) IsLeaf() bool {
	return len(n.Children) == 0
}

// AllDocuments returns the documents under n in tree order.
func (n *GroupNode) AllDocuments() []Document {
	if n.IsLeaf() {
		return n.Documents
	}
	var out []Document
	for _, child := range n.Children {
		out = append(out, child.AllDocuments()...)
	}
	return out
}

// Titles returns the sorted filename stems of every document under n.
func (n *GroupNode) Titles() []string {
	docs := n.AllDocuments()
	out := make([]string, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.Stem())
	}
	sort.Strings(out)
	return out
}

func (n *GroupNode) Filenames() []string {
	docs := n.AllDocuments()
	out := make([]string, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.Filename)
	}
	sort.Strings(out)
	return out
}

// Tree is the hand-off to the assembler.
type Tree struct {
	Roots []*GroupNode `json:"roots"`
}

// Leaves returns every leaf in depth-first order.
func (t *Tree) Leaves() []*GroupNode {
	return Leaves(t.Roots)
}

func Leaves(nodes []*GroupNode) []*GroupNode {
	var out []*GroupNode
	for _, node := range nodes {
		if node.IsLeaf() {
			out = append(out, node)
			continue
		}
		out = append(out, Leaves(node.Children)...)
	}
	return out
}

// Walk visits nodes depth-first with their ancestor path (names).
func (t *Tree) Walk(fn func(node *GroupNode, path []string) error) error {
	return walk(t.Roots, nil, fn)
}

func walk(nodes []*GroupNode, parent []string, fn func(*GroupNode, []string) error) error {
	for _, node := range nodes {
		path := append(append([]string(nil), parent...), node.Name)
		if err := fn(node, path); err != nil {
			return err
		}
		if err := walk(node.Children, path, fn); err != nil {
			return err
		}
	}
	return nil
}

func (t *Tree) MaxDepth() int {
	depth := 0
	_ = t.Walk(func(node *GroupNode, _ []string) error {
		if node.Depth > depth {
			depth = node.Depth
		}
		return nil
	})
	return depth
}
