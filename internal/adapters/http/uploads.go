package httpadapter

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/kirillkom/document-sorter/internal/core/domain"
	"github.com/kirillkom/document-sorter/internal/infrastructure/guide"
)

const multipartMemory = 32 << 20

// parseOrganizeRequest reads the multipart fields "files" (repeated),
// optional "guide" (file) and optional "preset".
func parseOrganizeRequest(w http.ResponseWriter, r *http.Request, maxBytes int64) (domain.OrganizeRequest, error) {
	if maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return domain.OrganizeRequest{}, err
		}
		return domain.OrganizeRequest{}, domain.WrapError(domain.ErrInvalidInput, "parse upload", err)
	}

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		return domain.OrganizeRequest{}, domain.WrapError(domain.ErrInvalidInput, "parse upload", errors.New("multipart field 'files' is required"))
	}

	req := domain.OrganizeRequest{Uploads: make([]domain.Upload, 0, len(headers))}
	for _, header := range headers {
		content, err := readPart(header)
		if err != nil {
			return domain.OrganizeRequest{}, err
		}
		req.Uploads = append(req.Uploads, domain.Upload{Filename: header.Filename, Content: content})
	}

	if guides := r.MultipartForm.File["guide"]; len(guides) > 0 {
		content, err := readPart(guides[0])
		if err != nil {
			return domain.OrganizeRequest{}, err
		}
		outline, err := guide.Parse(guides[0].Filename, content)
		if err != nil {
			return domain.OrganizeRequest{}, err
		}
		req.Guide = outline
	}

	preset, err := domain.ParseClusterPreset(r.FormValue("preset"))
	if err != nil {
		return domain.OrganizeRequest{}, err
	}
	if r.FormValue("preset") != "" {
		req.Preset = preset
	}
	return req, nil
}

func readPart(header *multipart.FileHeader) ([]byte, error) {
	file, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload %s: %w", header.Filename, err)
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read upload %s: %w", header.Filename, err)
	}
	return content, nil
}
