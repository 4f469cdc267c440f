package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/document-sorter/internal/core/domain"
	"github.com/kirillkom/document-sorter/internal/core/ports"
)

type OrganizeConfig struct {
	Identity           domain.IdentityMode
	DefaultPreset      domain.ClusterPreset
	GuideMinSimilarity float64
}

// OrganizeUseCase coordinates normalize -> embed -> split -> name/describe
// and hands the finished tree to the caller.
type OrganizeUseCase struct {
	extractor  ports.TextExtractor
	normalizer *Normalizer
	embeddings *EmbeddingCache
	splitter   *Splitter
	namer      *Namer
	metrics    ports.PipelineMetrics
	cfg        OrganizeConfig
	logger     *slog.Logger
}

func NewOrganizeUseCase(
	extractor ports.TextExtractor,
	normalizer *Normalizer,
	embeddings *EmbeddingCache,
	splitter *Splitter,
	namer *Namer,
	metrics ports.PipelineMetrics,
	cfg OrganizeConfig,
	logger *slog.Logger,
) *OrganizeUseCase {
	if metrics == nil {
		metrics = noopPipelineMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Identity == "" {
		cfg.Identity = domain.IdentityFilename
	}
	if cfg.DefaultPreset == "" {
		cfg.DefaultPreset = domain.PresetDefault
	}
	return &OrganizeUseCase{
		extractor:  extractor,
		normalizer: normalizer,
		embeddings: embeddings,
		splitter:   splitter,
		namer:      namer,
		metrics:    metrics,
		cfg:        cfg,
		logger:     logger,
	}
}

func (uc *OrganizeUseCase) Organize(ctx context.Context, req domain.OrganizeRequest) (result *domain.OrganizeResult, err error) {
	started := time.Now()
	uc.metrics.StartRun()

	var (
		report domain.RunReport
		groups int
	)
	defer func() {
		report.Duration = time.Since(started)
		uc.metrics.FinishRun(report, groups, err)
	}()

	tree, err := uc.buildTree(ctx, req, &report)
	if err != nil {
		return nil, err
	}
	if err := uc.materialize(ctx, tree, req.Progress, &report); err != nil {
		return nil, err
	}
	groups = len(tree.Leaves())

	uc.logReport(report)
	return &domain.OrganizeResult{Tree: tree, Report: report}, nil
}

// Preview runs extraction, normalization, embedding and splitting without
// naming or describing groups.
func (uc *OrganizeUseCase) Preview(ctx context.Context, req domain.OrganizeRequest) (*domain.Plan, error) {
	var report domain.RunReport
	tree, err := uc.buildTree(ctx, req, &report)
	if err != nil {
		return nil, err
	}
	uc.logReport(report)
	return domain.PlanFromTree(tree, len(req.Uploads)), nil
}

func (uc *OrganizeUseCase) buildTree(ctx context.Context, req domain.OrganizeRequest, report *domain.RunReport) (*domain.Tree, error) {
	if len(req.Uploads) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "organize", fmt.Errorf("no documents uploaded"))
	}
	preset := req.Preset
	if preset == "" {
		preset = uc.cfg.DefaultPreset
	}
	if req.Guide != nil && req.Guide.Empty() {
		return nil, domain.WrapError(domain.ErrStructural, "organize", fmt.Errorf("guide outline has no categories"))
	}

	docs := uc.extract(ctx, req.Uploads, report)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	normalized, normalizeReport := uc.normalizer.NormalizeAll(ctx, docs, req.Guide, req.Progress)
	report.Add(normalizeReport)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	texts := make([]string, len(normalized))
	for i, result := range normalized {
		texts[i] = result.Record.EmbeddingText
	}
	vectors, embedReport := uc.embeddings.Embed(ctx, texts)
	report.Add(embedReport)
	if req.Progress != nil {
		req.Progress(domain.StageEmbed, len(texts), len(texts))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	splitter := uc.splitter.WithParams(preset.Params())
	if req.Guide != nil {
		roots, err := uc.guidedTree(ctx, splitter, req.Guide, docs, normalized, vectors, report)
		if err != nil {
			return nil, err
		}
		return &domain.Tree{Roots: roots}, nil
	}

	roots, clusterReport, err := splitter.Split(ctx, docs, vectors, 0)
	report.Add(clusterReport)
	if err != nil {
		return nil, err
	}
	return &domain.Tree{Roots: roots}, nil
}

func (uc *OrganizeUseCase) extract(ctx context.Context, uploads []domain.Upload, report *domain.RunReport) []domain.Document {
	stage := domain.StageReport{Stage: domain.StageExtract}
	docs := make([]domain.Document, len(uploads))
	for i, upload := range uploads {
		doc := domain.NewDocument(upload, uc.cfg.Identity)
		if uc.extractor != nil {
			text, err := uc.extractor.Extract(ctx, doc.Filename, doc.Content)
			if err != nil {
				uc.logger.Warn("extract_failed", "filename", doc.Filename, "error", err)
				stage.Record(domain.OutcomeFallback)
			} else {
				doc.Text = text
				stage.Record(domain.OutcomeLive)
			}
		}
		docs[i] = doc
	}
	report.Add(stage)
	return docs
}

// guidedTree assigns every document to one outline category and splits
// oversized categories below a fixed category folder. The category folder is
// not a cluster call, so with MaxDepth 0 an oversized category is chunked.
func (uc *OrganizeUseCase) guidedTree(
	ctx context.Context,
	splitter *Splitter,
	guide *domain.Outline,
	docs []domain.Document,
	normalized []domain.NormalizeResult,
	vectors []domain.EmbeddingVector,
	report *domain.RunReport,
) ([]*domain.GroupNode, error) {
	names := make([]string, len(guide.Categories))
	seen := make(map[string]string, len(guide.Categories))
	texts := make([]string, len(guide.Categories))
	for i, category := range guide.Categories {
		names[i] = SanitizeFolderName(category.Name)
		if prev, ok := seen[names[i]]; ok {
			return nil, domain.WrapError(domain.ErrStructural, "guided organize",
				fmt.Errorf("categories %q and %q map to the same folder %q", prev, category.Name, names[i]))
		}
		seen[names[i]] = category.Name
		texts[i] = category.EmbeddingText()
	}
	categoryVectors, embedReport := uc.embeddings.Embed(ctx, texts)
	report.Add(embedReport)

	assigned := make([][]int, len(guide.Categories))
	for i, doc := range docs {
		idx, err := uc.assignCategory(guide, normalized[i].Record, vectors[i], categoryVectors)
		if err != nil {
			return nil, domain.WrapError(domain.ErrStructural, "guided organize",
				fmt.Errorf("document %q: %w", doc.Filename, err))
		}
		assigned[idx] = append(assigned[idx], i)
	}

	clusterReport := domain.StageReport{Stage: domain.StageCluster}
	var roots []*domain.GroupNode
	for c, members := range assigned {
		if len(members) == 0 {
			continue
		}
		memberDocs := make([]domain.Document, len(members))
		memberVectors := make([]domain.EmbeddingVector, len(members))
		for j, i := range members {
			memberDocs[j] = docs[i]
			memberVectors[j] = vectors[i]
		}

		node := &domain.GroupNode{Name: names[c], Depth: 0}
		if len(memberDocs) <= splitter.Config().MaxGroupSize {
			node.Documents = memberDocs
			roots = append(roots, node)
			continue
		}
		children, stage, err := splitter.Split(ctx, memberDocs, memberVectors, 1)
		clusterReport.Live += stage.Live
		clusterReport.Fallback += stage.Fallback
		clusterReport.Failed += stage.Failed
		if err != nil {
			return nil, err
		}
		node.Children = children
		roots = append(roots, node)
	}
	report.Add(clusterReport)
	return roots, nil
}

func (uc *OrganizeUseCase) assignCategory(
	guide *domain.Outline,
	record domain.NormalizedRecord,
	vector domain.EmbeddingVector,
	categoryVectors []domain.EmbeddingVector,
) (int, error) {
	hint := strings.ToLower(strings.TrimSpace(record.Domain))
	for i, category := range guide.Categories {
		if hint != "" && strings.ToLower(strings.TrimSpace(category.Name)) == hint {
			return i, nil
		}
	}
	if vector.Sentinel || len(vector.Values) == 0 {
		return 0, fmt.Errorf("no embedding and no category named %q", record.Domain)
	}

	best, bestScore := -1, 0.0
	for i, candidate := range categoryVectors {
		if candidate.Sentinel || len(candidate.Values) != len(vector.Values) {
			continue
		}
		score := cosineSimilarity(vector.Values, candidate.Values)
		if best < 0 || score > bestScore {
			best, bestScore = i, score
		}
	}
	if best < 0 {
		return 0, fmt.Errorf("no category could be compared")
	}
	if bestScore < uc.cfg.GuideMinSimilarity {
		return 0, fmt.Errorf("best category similarity %.3f is below %.3f", bestScore, uc.cfg.GuideMinSimilarity)
	}
	return best, nil
}

// materialize names and describes the tree top-down and resolves sibling
// name collisions.
func (uc *OrganizeUseCase) materialize(ctx context.Context, tree *domain.Tree, progress domain.ProgressFunc, report *domain.RunReport) error {
	total := 0
	_ = tree.Walk(func(*domain.GroupNode, []string) error {
		total++
		return nil
	})

	state := &materializeState{
		total:    total,
		progress: progress,
		name:     domain.StageReport{Stage: domain.StageName},
		describe: domain.StageReport{Stage: domain.StageDescribe},
	}
	if err := uc.materializeLevel(ctx, tree.Roots, "", state); err != nil {
		return err
	}
	report.Add(state.name)
	report.Add(state.describe)
	return nil
}

type materializeState struct {
	done     int
	total    int
	progress domain.ProgressFunc
	name     domain.StageReport
	describe domain.StageReport
}

func (uc *OrganizeUseCase) materializeLevel(ctx context.Context, nodes []*domain.GroupNode, parentTopic string, state *materializeState) error {
	used := make(map[string]struct{}, len(nodes))
	for _, node := range nodes {
		if err := ctx.Err(); err != nil {
			return err
		}

		base := node.Name
		if base == "" {
			name, outcome := uc.namer.NameGroup(ctx, node.Titles())
			state.name.Record(outcome)
			base = name
		}
		node.Name = UniqueName(base, used)

		topic := strings.ReplaceAll(node.Name, "_", " ")
		if parentTopic != "" {
			topic = parentTopic + " - " + topic
		}
		description, outcome := uc.namer.DescribeGroup(ctx, topic, node.Filenames(), node.ForcedSplit)
		state.describe.Record(outcome)
		node.Description = description

		state.done++
		if state.progress != nil {
			state.progress(domain.StageDescribe, state.done, state.total)
		}

		if err := uc.materializeLevel(ctx, node.Children, topic, state); err != nil {
			return err
		}
	}
	return nil
}

func (uc *OrganizeUseCase) logReport(report domain.RunReport) {
	for _, stage := range report.Stages {
		uc.logger.Info("stage_report",
			"stage", stage.Stage,
			"live", stage.Live,
			"cached", stage.Cached,
			"fallback", stage.Fallback,
			"failed", stage.Failed,
		)
		uc.metrics.ObserveStage(stage)
	}
	normalize := report.Stage(domain.StageNormalize)
	if total := normalize.Total(); total > 0 && normalize.Fallback == total {
		uc.logger.Warn("run_degraded", "stage", domain.StageNormalize, "fallback", normalize.Fallback)
	}
}

type noopPipelineMetrics struct{}

func (noopPipelineMetrics) ObserveStage(domain.StageReport)        {}
func (noopPipelineMetrics) StartRun()                              {}
func (noopPipelineMetrics) FinishRun(domain.RunReport, int, error) {}
