// Package archive lays a grouped tree out as folders, either inside a ZIP
// stream or on disk.
package archive

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/kirillkom/document-sorter/internal/core/domain"
)

// ReadmeName sorts ahead of the content files in every folder.
const ReadmeName = "00_README.md"

type entry struct {
	Path    string
	Content []byte
}

type Assembler struct {
	modified time.Time
}

func New() *Assembler {
	return &Assembler{modified: time.Now()}
}

func (a *Assembler) WriteZip(ctx context.Context, tree *domain.Tree, w io.Writer) error {
	entries, err := layout(ctx, tree)
	if err != nil {
		return err
	}
	zw := zip.NewWriter(w)
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		fw, err := zw.CreateHeader(&zip.FileHeader{
			Name:     e.Path,
			Method:   zip.Deflate,
			Modified: a.modified,
		})
		if err != nil {
			return fmt.Errorf("create zip entry %s: %w", e.Path, err)
		}
		if _, err := fw.Write(e.Content); err != nil {
			return fmt.Errorf("write zip entry %s: %w", e.Path, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("close zip: %w", err)
	}
	return nil
}

// WriteDir writes the tree below dir, creating folders as needed.
func (a *Assembler) WriteDir(ctx context.Context, tree *domain.Tree, dir string) error {
	entries, err := layout(ctx, tree)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		target := filepath.Join(dir, filepath.FromSlash(e.Path))
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return fmt.Errorf("create folder for %s: %w", e.Path, err)
		}
		if err := os.WriteFile(target, e.Content, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", e.Path, err)
		}
	}
	return nil
}

func layout(ctx context.Context, tree *domain.Tree) ([]entry, error) {
	if tree == nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "assemble archive", fmt.Errorf("tree is nil"))
	}
	var entries []entry
	err := tree.Walk(func(node *domain.GroupNode, names []string) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		folder := path.Join(names...)
		used := map[string]struct{}{ReadmeName: {}}
		if strings.TrimSpace(node.Description) != "" {
			entries = append(entries, entry{Path: folder + "/" + ReadmeName, Content: []byte(node.Description)})
		}
		for _, doc := range node.Documents {
			name := uniqueFilename(safeFilename(doc.Filename), used)
			entries = append(entries, entry{Path: folder + "/" + name, Content: doc.Content})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func safeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == ".." || name == "" {
		return "document"
	}
	return name
}

// uniqueFilename appends _1, _2, ... before the extension until the name is
// free within the folder.
func uniqueFilename(name string, used map[string]struct{}) string {
	if _, taken := used[name]; !taken {
		used[name] = struct{}{}
		return name
	}
	ext := path.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 1; ; i++ {
		candidate := stem + "_" + strconv.Itoa(i) + ext
		if _, taken := used[candidate]; !taken {
			used[candidate] = struct{}{}
			return candidate
		}
	}
}
