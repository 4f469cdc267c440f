package domain

import (
	"fmt"
	"strings"
)

// NoiseLabel marks a point that did not fit any dense group. Labels are only
// comparable within a single clustering call.
const NoiseLabel = -1

type ClusterParams struct {
	MinClusterSize int `json:"min_cluster_size"`
	MinSamples     int `json:"min_samples"`
}

type ClusterPreset string

const (
	PresetLoose   ClusterPreset = "loose"
	PresetDefault ClusterPreset = "default"
	PresetTight   ClusterPreset = "tight"
)

// Params maps a preset to its tuning pair. Looser settings merge more,
// tighter settings split more.
func (p ClusterPreset) Params() ClusterParams {
	switch p {
	case PresetLoose:
		return ClusterParams{MinClusterSize: 5, MinSamples: 1}
	case PresetTight:
		return ClusterParams{MinClusterSize: 2, MinSamples: 2}
	default:
		return ClusterParams{MinClusterSize: 3, MinSamples: 1}
	}
}

func ParseClusterPreset(raw string) (ClusterPreset, error) {
	switch ClusterPreset(strings.ToLower(strings.TrimSpace(raw))) {
	case "", PresetDefault:
		return PresetDefault, nil
	case PresetLoose:
		return PresetLoose, nil
	case PresetTight:
		return PresetTight, nil
	default:
		return "", WrapError(ErrInvalidInput, "parse cluster preset", fmt.Errorf("unknown preset %q", raw))
	}
}

// EmbeddingVector is one embedding. Sentinel vectors stand in for texts whose
// batch failed; they carry no values and are never cached.
type EmbeddingVector struct {
	Values   []float32 `json:"values"`
	Sentinel bool      `json:"sentinel,omitempty"`
}
