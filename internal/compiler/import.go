package compiler

import (
	"context"

	"github.com/google/uuid"

	"github.com/voxlog/voxlog/internal/model"
	"github.com/voxlog/voxlog/internal/store"
)

// Import materializes a compiled definition into the store: one
// transformation per step, then the pipeline referencing them in definition
// order. IDs are generated here; importing the same file twice creates a
// second independent pipeline.
func Import(ctx context.Context, st *store.Store, def *Definition) (model.Pipeline, error) {
	steps := make([]model.PipelineStep, 0, len(def.Steps))

	for _, sd := range def.Steps {
		t := sd.Transformation
		t.ID = uuid.Must(uuid.NewV7()).String()
		if _, err := st.AddTransformation(ctx, t); err != nil {
			return model.Pipeline{}, err
		}
		steps = append(steps, model.PipelineStep{
			TransformationID: t.ID,
			Enabled:          sd.Enabled,
		})
	}

	return st.AddPipeline(ctx, model.Pipeline{
		ID:          uuid.Must(uuid.NewV7()).String(),
		Title:       def.Title,
		Description: def.Description,
		Steps:       steps,
	})
}
