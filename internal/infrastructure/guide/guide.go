// Package guide parses category outlines from YAML, Markdown or plain text.
package guide

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/kirillkom/document-sorter/internal/core/domain"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"gopkg.in/yaml.v3"
)

// Parse picks the format from the file extension. Unknown extensions are read
// as plain text with one category per line.
func Parse(filename string, content []byte) (*domain.Outline, error) {
	var (
		outline *domain.Outline
		err     error
	)
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml", ".json":
		outline, err = ParseYAML(content)
	case ".md", ".markdown":
		outline = ParseMarkdown(content)
	default:
		outline = ParseText(content)
	}
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "parse guide", err)
	}
	outline = normalize(outline)
	if outline.Empty() {
		return nil, domain.WrapError(domain.ErrStructural, "parse guide", fmt.Errorf("%s has no categories", filename))
	}
	return outline, nil
}

// ParseYAML accepts either a "categories" list or a mapping of category name
// to subtopics. Mapping order is preserved.
func ParseYAML(content []byte) (*domain.Outline, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(content, &root); err != nil {
		return nil, err
	}
	outline := &domain.Outline{}
	if root.Kind == 0 || len(root.Content) == 0 {
		return outline, nil
	}
	node := root.Content[0]

	if node.Kind == yaml.MappingNode {
		if value := mappingValue(node, "categories"); value != nil {
			node = value
		}
	}

	switch node.Kind {
	case yaml.MappingNode:
		for i := 0; i+1 < len(node.Content); i += 2 {
			outline.Categories = append(outline.Categories, domain.Category{
				Name:      node.Content[i].Value,
				Subtopics: scalars(node.Content[i+1]),
			})
		}
	case yaml.SequenceNode:
		for _, item := range node.Content {
			category, err := categoryFromNode(item)
			if err != nil {
				return nil, err
			}
			outline.Categories = append(outline.Categories, category...)
		}
	case yaml.ScalarNode:
		for _, name := range splitList(node.Value) {
			outline.Categories = append(outline.Categories, domain.Category{Name: name})
		}
	default:
		return nil, errors.New("unsupported outline layout")
	}
	return outline, nil
}

func categoryFromNode(node *yaml.Node) ([]domain.Category, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		return []domain.Category{{Name: node.Value}}, nil
	case yaml.MappingNode:
		if name := mappingValue(node, "name"); name != nil {
			category := domain.Category{Name: name.Value}
			if subtopics := mappingValue(node, "subtopics"); subtopics != nil {
				category.Subtopics = scalars(subtopics)
			}
			return []domain.Category{category}, nil
		}
		out := make([]domain.Category, 0, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			out = append(out, domain.Category{
				Name:      node.Content[i].Value,
				Subtopics: scalars(node.Content[i+1]),
			})
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported category entry at line %d", node.Line)
	}
}

func mappingValue(node *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(node.Content); i += 2 {
		if strings.EqualFold(node.Content[i].Value, key) {
			return node.Content[i+1]
		}
	}
	return nil
}

func scalars(node *yaml.Node) []string {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			return nil
		}
		return splitList(node.Value)
	case yaml.SequenceNode:
		out := make([]string, 0, len(node.Content))
		for _, item := range node.Content {
			out = append(out, scalars(item)...)
		}
		return out
	case yaml.MappingNode:
		out := make([]string, 0, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			out = append(out, node.Content[i].Value)
		}
		return out
	default:
		return nil
	}
}

// ParseMarkdown turns the shallowest heading level into categories. Deeper
// headings and list items below a category become its subtopics. A document
// without headings is read as a list of categories with nested subtopics.
func ParseMarkdown(content []byte) *domain.Outline {
	doc := goldmark.New().Parser().Parse(text.NewReader(content))

	topLevel := 0
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		if heading, ok := n.(*ast.Heading); ok && (topLevel == 0 || heading.Level < topLevel) {
			topLevel = heading.Level
		}
	}

	outline := &domain.Outline{}
	current := -1
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		switch node := n.(type) {
		case *ast.Heading:
			title := inlineText(node, content)
			if node.Level == topLevel {
				outline.Categories = append(outline.Categories, domain.Category{Name: title})
				current = len(outline.Categories) - 1
			} else if current >= 0 {
				outline.Categories[current].Subtopics = append(outline.Categories[current].Subtopics, title)
			}
		case *ast.List:
			if current >= 0 {
				outline.Categories[current].Subtopics = append(outline.Categories[current].Subtopics, listItems(node, content)...)
				continue
			}
			if topLevel != 0 {
				continue
			}
			for item := node.FirstChild(); item != nil; item = item.NextSibling() {
				category := domain.Category{Name: inlineText(item, content)}
				for child := item.FirstChild(); child != nil; child = child.NextSibling() {
					if nested, ok := child.(*ast.List); ok {
						category.Subtopics = append(category.Subtopics, listItems(nested, content)...)
					}
				}
				outline.Categories = append(outline.Categories, category)
			}
		}
	}
	return outline
}

// listItems flattens a list and its nested lists.
func listItems(list *ast.List, source []byte) []string {
	var out []string
	for item := list.FirstChild(); item != nil; item = item.NextSibling() {
		out = append(out, inlineText(item, source))
		for child := item.FirstChild(); child != nil; child = child.NextSibling() {
			if nested, ok := child.(*ast.List); ok {
				out = append(out, listItems(nested, source)...)
			}
		}
	}
	return out
}

// inlineText collects the text of a node, skipping nested lists.
func inlineText(node ast.Node, source []byte) string {
	var b strings.Builder
	var collect func(n ast.Node)
	collect = func(n ast.Node) {
		for child := n.FirstChild(); child != nil; child = child.NextSibling() {
			switch c := child.(type) {
			case *ast.List:
				continue
			case *ast.Text:
				b.Write(c.Segment.Value(source))
				if c.SoftLineBreak() || c.HardLineBreak() {
					b.WriteByte(' ')
				}
			case *ast.String:
				b.Write(c.Value)
			default:
				collect(child)
			}
		}
	}
	collect(node)
	return strings.TrimSpace(b.String())
}

// ParseText reads "Name: subtopic, subtopic" lines. Indented or dashed lines
// add subtopics to the preceding category.
func ParseText(content []byte) *domain.Outline {
	outline := &domain.Outline{}
	scanner := bufio.NewScanner(bytes.NewReader(content))
	for scanner.Scan() {
		raw := scanner.Text()
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		nested := raw[0] == ' ' || raw[0] == '\t' || strings.HasPrefix(line, "- ") || strings.HasPrefix(line, "* ")
		if nested && len(outline.Categories) > 0 {
			last := &outline.Categories[len(outline.Categories)-1]
			last.Subtopics = append(last.Subtopics, strings.TrimLeft(line, "-* "))
			continue
		}
		name, rest, found := strings.Cut(line, ":")
		category := domain.Category{Name: name}
		if found {
			category.Subtopics = splitList(rest)
		}
		outline.Categories = append(outline.Categories, category)
	}
	return outline
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// normalize trims names, drops blank entries and merges repeated categories.
func normalize(outline *domain.Outline) *domain.Outline {
	if outline == nil {
		return nil
	}
	out := &domain.Outline{}
	index := make(map[string]int)
	for _, category := range outline.Categories {
		name := strings.TrimSpace(category.Name)
		if name == "" {
			continue
		}
		var subtopics []string
		for _, subtopic := range category.Subtopics {
			if subtopic = strings.TrimSpace(subtopic); subtopic != "" {
				subtopics = append(subtopics, subtopic)
			}
		}
		if i, ok := index[name]; ok {
			out.Categories[i].Subtopics = append(out.Categories[i].Subtopics, subtopics...)
			continue
		}
		index[name] = len(out.Categories)
		out.Categories = append(out.Categories, domain.Category{Name: name, Subtopics: subtopics})
	}
	return out
}
