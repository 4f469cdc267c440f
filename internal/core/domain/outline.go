package domain

import "strings"

// Outline is the optional category guide parsed from a separate document.
type Outline struct {
	Categories []Category `json:"categories" yaml:"categories"`
}

type Category struct {
	Name      string   `json:"name" yaml:"name"`
	Subtopics []string `json:"subtopics,omitempty" yaml:"subtopics,omitempty"`
}

func (o *Outline) Empty() bool {
	return o == nil || len(o.Categories) == 0
}

// Text renders the outline deterministically; it feeds prompts and cache keys.
func (o *Outline) Text() string {
	if o.Empty() {
		return ""
	}
	var b strings.Builder
	for _, category := range o.Categories {
		b.WriteString(category.Name)
		if len(category.Subtopics) > 0 {
			b.WriteString(": ")
			b.WriteString(strings.Join(category.Subtopics, ", "))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (o *Outline) Names() []string {
	if o.Empty() {
		return nil
	}
	out := make([]string, 0, len(o.Categories))
	for _, category := range o.Categories {
		out = append(out, category.Name)
	}
	return out
}

// EmbeddingText is the text embedded to match documents against a category.
func (c Category) EmbeddingText() string {
	if len(c.Subtopics) == 0 {
		return "category: " + c.Name
	}
	return "category: " + c.Name + ": " + strings.Join(c.Subtopics, ", ")
}
