package store

import (
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/voxlog/voxlog/internal/model"
)

// Timestamps are persisted as Unix milliseconds.

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// NormalizeText returns the NFC form of transcript text. Providers emit a
// mix of composed and decomposed Unicode; normalizing on write keeps
// find/replace matching and equality checks stable.
func NormalizeText(s string) string {
	return norm.NFC.String(s)
}

// marshalParams serializes a transformation's kind-specific parameters.
// Exactly one parameter struct must be set, matching the kind.
func marshalParams(t model.Transformation) (string, error) {
	switch t.Kind {
	case model.KindFindReplace:
		if t.FindReplace == nil {
			return "", fmt.Errorf("transformation %s: find_replace params missing", t.ID)
		}
		data, err := json.Marshal(t.FindReplace)
		if err != nil {
			return "", fmt.Errorf("marshal find_replace params: %w", err)
		}
		return string(data), nil

	case model.KindPromptTransform:
		if t.PromptTransform == nil {
			return "", fmt.Errorf("transformation %s: prompt_transform params missing", t.ID)
		}
		data, err := json.Marshal(t.PromptTransform)
		if err != nil {
			return "", fmt.Errorf("marshal prompt_transform params: %w", err)
		}
		return string(data), nil

	default:
		return "", fmt.Errorf("transformation %s: unknown kind %q", t.ID, t.Kind)
	}
}

// unmarshalParams populates the kind-matching parameter struct.
func unmarshalParams(t *model.Transformation, paramsJSON string) error {
	switch t.Kind {
	case model.KindFindReplace:
		var p model.FindReplaceParams
		if err := json.Unmarshal([]byte(paramsJSON), &p); err != nil {
			return fmt.Errorf("unmarshal find_replace params: %w", err)
		}
		t.FindReplace = &p
		return nil

	case model.KindPromptTransform:
		var p model.PromptTransformParams
		if err := json.Unmarshal([]byte(paramsJSON), &p); err != nil {
			return fmt.Errorf("unmarshal prompt_transform params: %w", err)
		}
		t.PromptTransform = &p
		return nil

	default:
		return fmt.Errorf("unknown transformation kind %q", t.Kind)
	}
}

// marshalSteps serializes a pipeline's ordered step list.
func marshalSteps(steps []model.PipelineStep) (string, error) {
	if steps == nil {
		steps = []model.PipelineStep{}
	}
	data, err := json.Marshal(steps)
	if err != nil {
		return "", fmt.Errorf("marshal pipeline steps: %w", err)
	}
	return string(data), nil
}

// unmarshalSteps restores the ordered step list.
func unmarshalSteps(stepsJSON string) ([]model.PipelineStep, error) {
	var steps []model.PipelineStep
	if err := json.Unmarshal([]byte(stepsJSON), &steps); err != nil {
		return nil, fmt.Errorf("unmarshal pipeline steps: %w", err)
	}
	if steps == nil {
		steps = []model.PipelineStep{}
	}
	return steps, nil
}
