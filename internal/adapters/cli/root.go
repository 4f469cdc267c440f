// Package cli is the cobra front end of the sorter: organize, preview and
// cache maintenance against a local pipeline.
package cli

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/kirillkom/document-sorter/internal/core/domain"
	"github.com/kirillkom/document-sorter/internal/core/ports"
)

// Assembler writes a finished tree as a ZIP stream or a folder on disk.
type Assembler interface {
	WriteZip(ctx context.Context, tree *domain.Tree, w io.Writer) error
	WriteDir(ctx context.Context, tree *domain.Tree, dir string) error
}

type CacheResetter interface {
	Reset(ctx context.Context, names ...string) error
}

// Deps are resolved lazily so that "cache reset" works without LLM settings.
type Deps struct {
	Pipeline func() (ports.Organizer, Assembler, error)
	Caches   func() (CacheResetter, error)
}

func NewRootCommand(deps Deps) *cobra.Command {
	root := &cobra.Command{
		Use:           "sorter",
		Short:         "Group documents into named folders by meaning",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newOrganizeCommand(deps),
		newPreviewCommand(deps),
		newCacheCommand(deps),
	)
	return root
}
