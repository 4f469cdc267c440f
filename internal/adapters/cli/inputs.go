package cli

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kirillkom/document-sorter/internal/core/domain"
	"github.com/kirillkom/document-sorter/internal/infrastructure/guide"
)

// readUploads accepts files and directories; directories are walked
// recursively and hidden entries are skipped.
func readUploads(paths []string) ([]domain.Upload, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", p, err)
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if path != p && strings.HasPrefix(d.Name(), ".") {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if !d.IsDir() {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", p, err)
		}
	}
	sort.Strings(files)

	uploads := make([]domain.Upload, 0, len(files))
	for _, path := range files {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		uploads = append(uploads, domain.Upload{Filename: filepath.Base(path), Content: content})
	}
	return uploads, nil
}

func buildRequest(paths []string, guidePath, preset string) (domain.OrganizeRequest, error) {
	uploads, err := readUploads(paths)
	if err != nil {
		return domain.OrganizeRequest{}, err
	}
	req := domain.OrganizeRequest{Uploads: uploads}

	if guidePath != "" {
		content, err := os.ReadFile(guidePath)
		if err != nil {
			return domain.OrganizeRequest{}, fmt.Errorf("read guide: %w", err)
		}
		outline, err := guide.Parse(filepath.Base(guidePath), content)
		if err != nil {
			return domain.OrganizeRequest{}, err
		}
		req.Guide = outline
	}

	if preset != "" {
		parsed, err := domain.ParseClusterPreset(preset)
		if err != nil {
			return domain.OrganizeRequest{}, err
		}
		req.Preset = parsed
	}
	return req, nil
}
