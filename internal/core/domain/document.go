package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"regexp"
	"strings"
)

// UncategorizedDomain is the domain hint used when no summary is available.
const UncategorizedDomain = "uncategorized"

type IdentityMode string

const (
	IdentityFilename IdentityMode = "filename"
	IdentityContent  IdentityMode = "content"
)

// Document is one uploaded item. Text is filled by the extraction collaborator.
type Document struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Content  []byte `json:"-"`
	Text     string `json:"-"`
}

// Upload is a raw (filename, bytes) pair received from the upload shell.
type Upload struct {
	Filename string
	Content  []byte
}

func NewDocument(upload Upload, mode IdentityMode) Document {
	id := upload.Filename
	if mode == IdentityContent {
		id = Hash(string(upload.Content))
	}
	return Document{
		ID:       id,
		Filename: upload.Filename,
		Content:  upload.Content,
	}
}

// Stem returns the filename without its last extension.
func (d Document) Stem() string {
	return FilenameStem(d.Filename)
}

type NormalizedRecord struct {
	CanonicalTitle string   `json:"canonical_title"`
	Keywords       []string `json:"keywords"`
	Domain         string   `json:"domain"`
	EmbeddingText  string   `json:"embedding_text"`
}

func (r NormalizedRecord) Valid() bool {
	return strings.TrimSpace(r.EmbeddingText) != ""
}

type Outcome string

const (
	OutcomeLive     Outcome = "live"
	OutcomeCached   Outcome = "cached"
	OutcomeFallback Outcome = "fallback"
)

// NormalizeResult tags a record with the path that produced it.
type NormalizeResult struct {
	Record  NormalizedRecord `json:"record"`
	Outcome Outcome          `json:"outcome"`
	Reason  string           `json:"reason,omitempty"`
}

func (r NormalizeResult) Degraded() bool {
	return r.Outcome == OutcomeFallback
}

var (
	separatorRun  = regexp.MustCompile(`[_\-]+`)
	whitespaceRun = regexp.MustCompile(`\s+`)
)

func FilenameStem(filename string) string {
	base := filepath.Base(filename)
	if idx := strings.LastIndex(base, "."); idx > 0 {
		return base[:idx]
	}
	return base
}

// TitleFromFilename strips the extension, turns separators into spaces and
// collapses whitespace: "my_draft-file.txt" -> "my draft file".
func TitleFromFilename(filename string) string {
	title := separatorRun.ReplaceAllString(FilenameStem(filename), " ")
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(title, " "))
}

func FallbackRecord(filename string) NormalizedRecord {
	title := TitleFromFilename(filename)
	keywords := strings.Fields(title)
	if keywords == nil {
		keywords = []string{}
	}
	return NormalizedRecord{
		CanonicalTitle: title,
		Keywords:       keywords,
		Domain:         UncategorizedDomain,
		EmbeddingText:  "title: " + title,
	}
}

// Hash is the content address used by every cache table.
func Hash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
