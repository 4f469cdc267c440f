package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/kirillkom/document-sorter/internal/core/domain"
	"github.com/kirillkom/document-sorter/internal/core/ports"
)

type cacheFake struct {
	mu       sync.Mutex
	entries  map[string][]byte
	puts     int
	putManys int
	resets   int
}

func newCacheFake() *cacheFake {
	return &cacheFake{entries: make(map[string][]byte)}
}

func (c *cacheFake) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	value, ok := c.entries[key]
	return value, ok
}

func (c *cacheFake) Put(_ context.Context, key string, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
	c.puts++
	return nil
}

func (c *cacheFake) PutMany(_ context.Context, entries map[string][]byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, value := range entries {
		c.entries[key] = value
	}
	c.putManys++
	return nil
}

func (c *cacheFake) Reset(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string][]byte)
	c.resets++
	return nil
}

func (c *cacheFake) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

type summarizerFake struct {
	mu       sync.Mutex
	calls    int
	requests []ports.SummarizeRequest
	err      error
	record   func(req ports.SummarizeRequest) domain.NormalizedRecord
}

func (f *summarizerFake) Summarize(_ context.Context, req ports.SummarizeRequest) (domain.NormalizedRecord, error) {
	f.mu.Lock()
	f.calls++
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.err != nil {
		return domain.NormalizedRecord{}, f.err
	}
	if f.record != nil {
		return f.record(req), nil
	}
	title := domain.TitleFromFilename(req.Filename)
	return domain.NormalizedRecord{
		CanonicalTitle: title,
		Keywords:       []string{"k"},
		Domain:         "general",
		EmbeddingText:  "summary of " + title,
	}, nil
}

func (f *summarizerFake) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// embedderFake maps each text to a vector produced by vectorFor.
type embedderFake struct {
	calls     [][]string
	failWhen  func(texts []string) bool
	short     bool
	vectorFor func(text string) []float32
}

func (f *embedderFake) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.calls = append(f.calls, append([]string(nil), texts...))
	if f.failWhen != nil && f.failWhen(texts) {
		return nil, errors.New("embedding backend unavailable")
	}
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		if f.vectorFor != nil {
			out = append(out, f.vectorFor(text))
			continue
		}
		out = append(out, []float32{float32(len(text)), 1})
	}
	if f.short && len(out) > 0 {
		out = out[:len(out)-1]
	}
	return out, nil
}

type generatorFake struct {
	mu           sync.Mutex
	nameCalls    int
	describeCall int
	nameErr      error
	describeErr  error
	name         func(titles []string) string
}

func (f *generatorFake) GenerateGroupName(_ context.Context, titles []string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nameCalls++
	if f.nameErr != nil {
		return "", f.nameErr
	}
	if f.name != nil {
		return f.name(titles), nil
	}
	return "Group " + titles[0], nil
}

func (f *generatorFake) GenerateDescription(_ context.Context, topic string, filenames []string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.describeCall++
	if f.describeErr != nil {
		return "", f.describeErr
	}
	return "About " + topic + ": " + strings.Join(filenames, ", "), nil
}

// clustererFake labels points with fn; calls records the size of each call.
type clustererFake struct {
	calls []int
	err   error
	fn    func(vectors [][]float32) []int
}

func (f *clustererFake) Cluster(_ context.Context, vectors [][]float32, _ domain.ClusterParams) ([]int, error) {
	f.calls = append(f.calls, len(vectors))
	if f.err != nil {
		return nil, f.err
	}
	return f.fn(vectors), nil
}

// labelByFirst groups points by their first coordinate; negative values are noise.
func labelByFirst(vectors [][]float32) []int {
	labels := make([]int, len(vectors))
	for i, v := range vectors {
		labels[i] = int(v[0])
		if v[0] < 0 {
			labels[i] = domain.NoiseLabel
		}
	}
	return labels
}

type extractorFake struct {
	err error
}

func (f *extractorFake) Extract(_ context.Context, _ string, content []byte) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return string(content), nil
}

type runRepoFake struct {
	created     *domain.Run
	createErr   error
	statusCalls []domain.RunStatus
	errMessages []string
	saved       *domain.RunResult
	saveErr     error
}

func (f *runRepoFake) Create(_ context.Context, run *domain.Run) error {
	if f.createErr != nil {
		return f.createErr
	}
	copyRun := *run
	f.created = &copyRun
	return nil
}

func (f *runRepoFake) GetByID(_ context.Context, id string) (*domain.Run, error) {
	if f.created == nil || f.created.ID != id {
		return nil, domain.ErrRunNotFound
	}
	copyRun := *f.created
	return &copyRun, nil
}

func (f *runRepoFake) UpdateStatus(_ context.Context, _ string, status domain.RunStatus, errMessage string) error {
	f.statusCalls = append(f.statusCalls, status)
	f.errMessages = append(f.errMessages, errMessage)
	return nil
}

func (f *runRepoFake) SaveResult(_ context.Context, _ string, result domain.RunResult) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = &result
	return nil
}

type storageFake struct {
	objects map[string][]byte
	saveErr error
}

func newStorageFake() *storageFake {
	return &storageFake{objects: make(map[string][]byte)}
}

func (f *storageFake) Save(_ context.Context, key string, data io.Reader) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.objects[key] = raw
	return nil
}

func (f *storageFake) Open(_ context.Context, key string) (io.ReadCloser, error) {
	raw, ok := f.objects[key]
	if !ok {
		return nil, errors.New("object not found")
	}
	return io.NopCloser(strings.NewReader(string(raw))), nil
}

type queueFake struct {
	published []string
	err       error
}

func (f *queueFake) PublishRunQueued(_ context.Context, runID string) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, runID)
	return nil
}

func (f *queueFake) SubscribeRunQueued(context.Context, func(context.Context, string) error) error {
	return nil
}

func uploads(names ...string) []domain.Upload {
	out := make([]domain.Upload, 0, len(names))
	for _, name := range names {
		out = append(out, domain.Upload{Filename: name, Content: []byte("content of " + name)})
	}
	return out
}

func docsNamed(n int) []domain.Document {
	docs := make([]domain.Document, n)
	for i := range docs {
		name := fmt.Sprintf("doc_%03d.txt", i)
		docs[i] = domain.Document{ID: name, Filename: name}
	}
	return docs
}
