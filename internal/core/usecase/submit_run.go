package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/document-sorter/internal/core/domain"
	"github.com/kirillkom/document-sorter/internal/core/ports"
)

// runManifest is stored next to the run inputs so a worker can rebuild the
// organize request.
type runManifest struct {
	Preset domain.ClusterPreset `json:"preset"`
	Guide  *domain.Outline      `json:"guide,omitempty"`
	Inputs []runInput           `json:"inputs"`
}

type runInput struct {
	Filename string `json:"filename"`
	Key      string `json:"key"`
}

type SubmitRunUseCase struct {
	repo    ports.RunRepository
	storage ports.ObjectStorage
	queue   ports.MessageQueue
}

func NewSubmitRunUseCase(
	repo ports.RunRepository,
	storage ports.ObjectStorage,
	queue ports.MessageQueue,
) *SubmitRunUseCase {
	return &SubmitRunUseCase{
		repo:    repo,
		storage: storage,
		queue:   queue,
	}
}

func (uc *SubmitRunUseCase) Submit(ctx context.Context, req domain.OrganizeRequest) (*domain.Run, error) {
	if len(req.Uploads) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "submit run", fmt.Errorf("no documents uploaded"))
	}
	preset := req.Preset
	if preset == "" {
		preset = domain.PresetDefault
	}

	id := uuid.NewString()
	now := time.Now().UTC()

	manifest := runManifest{Preset: preset, Guide: req.Guide, Inputs: make([]runInput, 0, len(req.Uploads))}
	for i, upload := range req.Uploads {
		key := runInputKey(id, i, upload.Filename)
		if err := uc.storage.Save(ctx, key, bytes.NewReader(upload.Content)); err != nil {
			return nil, fmt.Errorf("save run input: %w", err)
		}
		manifest.Inputs = append(manifest.Inputs, runInput{Filename: upload.Filename, Key: key})
	}

	raw, err := json.Marshal(manifest)
	if err != nil {
		return nil, fmt.Errorf("marshal run manifest: %w", err)
	}
	if err := uc.storage.Save(ctx, runManifestKey(id), bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("save run manifest: %w", err)
	}

	run := &domain.Run{
		ID:            id,
		Status:        domain.RunQueued,
		Preset:        preset,
		DocumentCount: len(req.Uploads),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := uc.repo.Create(ctx, run); err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}

	if err := uc.queue.PublishRunQueued(ctx, run.ID); err != nil {
		return nil, fmt.Errorf("publish run queued event: %w", err)
	}
	return run, nil
}

func runInputKey(runID string, index int, filename string) string {
	return fmt.Sprintf("runs/%s/input/%04d_%s", runID, index, sanitizeFilename(filename))
}

func runManifestKey(runID string) string {
	return fmt.Sprintf("runs/%s/manifest.json", runID)
}

func RunArchiveKey(runID string) string {
	return fmt.Sprintf("runs/%s/result.zip", runID)
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." {
		return "document.bin"
	}
	return base
}
