// Package models selects a model for a request from the configured catalog,
// driven by use-case defaults with per-request overrides.
package models

import (
	"sort"

	"github.com/0x00000002/multi-ai/pkg/aierrors"
	"github.com/0x00000002/multi-ai/pkg/config"
)

// Criteria narrows the candidate set. Zero values defer to the use-case
// defaults from configuration.
type Criteria struct {
	UseCase config.UseCase
	Quality config.Quality
	Speed   config.Speed
	Privacy config.Privacy

	// MaxCost caps the estimated request cost. Zero means no cap.
	MaxCost float64

	// EstimatedInputTokens and EstimatedOutputTokens size the cost
	// estimate when MaxCost is set. When the input count is zero and
	// Prompt is given, the input size is estimated from the prompt text.
	EstimatedInputTokens  int
	EstimatedOutputTokens int
	Prompt                string
}

// inputTokens resolves the input size for cost estimation.
func (c Criteria) inputTokens() int {
	if c.EstimatedInputTokens > 0 {
		return c.EstimatedInputTokens
	}
	if c.Prompt != "" {
		return EstimateTokens(c.Prompt)
	}
	return 0
}

var qualityWeight = map[config.Quality]int{
	config.QualityHigh:   3,
	config.QualityMedium: 2,
	config.QualityLow:    1,
}

var speedWeight = map[config.Speed]int{
	config.SpeedFast:     3,
	config.SpeedStandard: 2,
	config.SpeedSlow:     1,
}

// Selector picks models from a config store. Selection is a pure function
// of the catalog and criteria.
type Selector struct {
	store *config.Store
}

func NewSelector(store *config.Store) *Selector {
	return &Selector{store: store}
}

// Select resolves the quality/speed defaults for the use case, applies the
// explicit criteria and returns the id of the best matching model.
func (s *Selector) Select(criteria Criteria) (string, *config.ModelConfig, error) {
	quality, speed := criteria.Quality, criteria.Speed
	if uc, err := s.store.UseCase(string(criteria.UseCase)); err == nil {
		if quality == "" {
			quality = uc.Quality
		}
		if speed == "" {
			speed = uc.Speed
		}
	}
	if quality == "" {
		quality = config.QualityMedium
	}
	if speed == "" {
		speed = config.SpeedStandard
	}

	type candidate struct {
		id    string
		model *config.ModelConfig
	}
	var candidates []candidate
	for id, m := range s.store.Models() {
		if m.Quality != quality || m.Speed != speed {
			continue
		}
		if criteria.Privacy != "" && m.Privacy != criteria.Privacy {
			continue
		}
		if criteria.UseCase != "" && len(m.UseCases) > 0 && !m.SupportsUseCase(criteria.UseCase) {
			continue
		}
		if criteria.MaxCost > 0 {
			cost := m.Cost.Estimate(criteria.inputTokens(), criteria.EstimatedOutputTokens)
			if cost > criteria.MaxCost {
				continue
			}
		}
		candidates = append(candidates, candidate{id: id, model: m})
	}

	if len(candidates) == 0 {
		return "", nil, aierrors.Newf(aierrors.KindNoSuitableModel,
			"no model matches quality=%s speed=%s for use case %q", quality, speed, criteria.UseCase)
	}

	// Same weights mean ties; ids break them so selection is deterministic.
	sort.Slice(candidates, func(i, j int) bool {
		wi := qualityWeight[candidates[i].model.Quality] + speedWeight[candidates[i].model.Speed]
		wj := qualityWeight[candidates[j].model.Quality] + speedWeight[candidates[j].model.Speed]
		if wi != wj {
			return wi > wj
		}
		return candidates[i].id < candidates[j].id
	})
	return candidates[0].id, candidates[0].model, nil
}
