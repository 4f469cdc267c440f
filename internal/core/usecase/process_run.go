package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/kirillkom/document-sorter/internal/core/domain"
	"github.com/kirillkom/document-sorter/internal/core/ports"
)

type ProcessRunUseCase struct {
	repo      ports.RunRepository
	storage   ports.ObjectStorage
	organizer ports.Organizer
	packager  ports.Packager
}

func NewProcessRunUseCase(
	repo ports.RunRepository,
	storage ports.ObjectStorage,
	organizer ports.Organizer,
	packager ports.Packager,
) *ProcessRunUseCase {
	return &ProcessRunUseCase{
		repo:      repo,
		storage:   storage,
		organizer: organizer,
		packager:  packager,
	}
}

func (uc *ProcessRunUseCase) ProcessByID(ctx context.Context, runID string) error {
	if err := uc.markStatus(ctx, runID, domain.RunProcessing, ""); err != nil {
		return fmt.Errorf("set status=processing: %w", err)
	}

	result, err := uc.processPipeline(ctx, runID)
	if err != nil {
		if failErr := uc.markFailed(ctx, runID, err); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if err := uc.repo.SaveResult(ctx, runID, result); err != nil {
		if failErr := uc.markFailed(ctx, runID, err); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return fmt.Errorf("save run result: %w", err)
	}
	return nil
}

func (uc *ProcessRunUseCase) processPipeline(ctx context.Context, runID string) (domain.RunResult, error) {
	req, err := uc.loadRequest(ctx, runID)
	if err != nil {
		return domain.RunResult{}, err
	}

	organized, err := uc.organizer.Organize(ctx, req)
	if err != nil {
		return domain.RunResult{}, fmt.Errorf("organize run: %w", err)
	}

	var archive bytes.Buffer
	if err := uc.packager.WriteZip(ctx, organized.Tree, &archive); err != nil {
		return domain.RunResult{}, fmt.Errorf("package run archive: %w", err)
	}
	key := RunArchiveKey(runID)
	if err := uc.storage.Save(ctx, key, &archive); err != nil {
		return domain.RunResult{}, fmt.Errorf("save run archive: %w", err)
	}

	return domain.RunResult{
		DocumentCount: len(req.Uploads),
		GroupCount:    len(organized.Tree.Leaves()),
		ArchiveKey:    key,
		Report:        organized.Report,
	}, nil
}

func (uc *ProcessRunUseCase) loadRequest(ctx context.Context, runID string) (domain.OrganizeRequest, error) {
	raw, err := uc.readObject(ctx, runManifestKey(runID))
	if err != nil {
		return domain.OrganizeRequest{}, fmt.Errorf("read run manifest: %w", err)
	}
	var manifest runManifest
	if err := json.Unmarshal(raw, &manifest); err != nil {
		return domain.OrganizeRequest{}, domain.WrapError(domain.ErrInvalidInput, "decode run manifest", err)
	}

	req := domain.OrganizeRequest{Guide: manifest.Guide, Preset: manifest.Preset}
	for _, input := range manifest.Inputs {
		content, err := uc.readObject(ctx, input.Key)
		if err != nil {
			return domain.OrganizeRequest{}, fmt.Errorf("read run input %s: %w", input.Filename, err)
		}
		req.Uploads = append(req.Uploads, domain.Upload{Filename: input.Filename, Content: content})
	}
	return req, nil
}

func (uc *ProcessRunUseCase) readObject(ctx context.Context, key string) ([]byte, error) {
	rc, err := uc.storage.Open(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func (uc *ProcessRunUseCase) markStatus(ctx context.Context, runID string, status domain.RunStatus, errMessage string) error {
	return uc.repo.UpdateStatus(ctx, runID, status, errMessage)
}

func (uc *ProcessRunUseCase) markFailed(ctx context.Context, runID string, processErr error) error {
	if processErr == nil {
		return nil
	}
	return uc.markStatus(ctx, runID, domain.RunFailed, processErr.Error())
}
