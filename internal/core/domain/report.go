package domain

import "time"

const (
	StageExtract   = "extract"
	StageNormalize = "normalize"
	StageEmbed     = "embed"
	StageCluster   = "cluster"
	StageName      = "name"
	StageDescribe  = "describe"
)

// StageReport counts how items of one stage were produced, so a degraded run
// (everything on fallback) is distinguishable from a healthy one.
type StageReport struct {
	Stage    string `json:"stage"`
	Live     int    `json:"live"`
	Cached   int    `json:"cached"`
	Fallback int    `json:"fallback"`
	Failed   int    `json:"failed"`
}

func (r *StageReport) Record(outcome Outcome) {
	switch outcome {
	case OutcomeLive:
		r.Live++
	case OutcomeCached:
		r.Cached++
	case OutcomeFallback:
		r.Fallback++
	}
}

func (r StageReport) Total() int {
	return r.Live + r.Cached + r.Fallback + r.Failed
}

type RunReport struct {
	Stages   []StageReport `json:"stages"`
	Duration time.Duration `json:"duration"`
}

func (r *RunReport) Add(stage StageReport) {
	for i := range r.Stages {
		if r.Stages[i].Stage == stage.Stage {
			r.Stages[i].Live += stage.Live
			r.Stages[i].Cached += stage.Cached
			r.Stages[i].Fallback += stage.Fallback
			r.Stages[i].Failed += stage.Failed
			return
		}
	}
	r.Stages = append(r.Stages, stage)
}

func (r RunReport) Stage(name string) StageReport {
	for _, stage := range r.Stages {
		if stage.Stage == name {
			return stage
		}
	}
	return StageReport{Stage: name}
}

// Plan is the size estimate produced without naming or describing groups.
type Plan struct {
	Documents    int   `json:"documents"`
	Groups       int   `json:"groups"`
	LeafSizes    []int `json:"leaf_sizes"`
	ForcedSplits int   `json:"forced_splits"`
	NoiseGroups  int   `json:"noise_groups"`
	MaxDepth     int   `json:"max_depth"`
}

func PlanFromTree(tree *Tree, documents int) *Plan {
	plan := &Plan{Documents: documents, LeafSizes: []int{}, MaxDepth: tree.MaxDepth()}
	for _, leaf := range tree.Leaves() {
		plan.Groups++
		plan.LeafSizes = append(plan.LeafSizes, len(leaf.Documents))
		if leaf.ForcedSplit {
			plan.ForcedSplits++
		}
		if leaf.Noise {
			plan.NoiseGroups++
		}
	}
	return plan
}
