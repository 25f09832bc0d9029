// Package mirror maintains an in-memory projection of the store for fast
// reads by interactive surfaces. The projection subscribes to committed
// changes, so after any mutating call returns the mirror already reflects it.
package mirror

import (
	"context"
	"sort"
	"sync"

	"github.com/voxlog/voxlog/internal/model"
	"github.com/voxlog/voxlog/internal/store"
)

// Mirror is a read-optimized copy of the store's entity tables. All accessors
// return copies and are safe for concurrent use.
type Mirror struct {
	store *store.Store
	sub   *store.Subscription

	mu              sync.RWMutex
	recordings      map[string]model.Recording
	transformations map[string]model.Transformation
	pipelines       map[string]model.Pipeline
	runs            map[string]model.PipelineRun
}

// Open builds a mirror over the store, subscribes to changes, and performs
// the initial full load. The subscription is registered before loading so no
// mutation can slip between the two.
func Open(ctx context.Context, st *store.Store) (*Mirror, error) {
	m := &Mirror{
		store:           st,
		recordings:      make(map[string]model.Recording),
		transformations: make(map[string]model.Transformation),
		pipelines:       make(map[string]model.Pipeline),
		runs:            make(map[string]model.PipelineRun),
	}
	m.sub = st.Subscribe(m.apply)

	if err := m.Load(ctx); err != nil {
		m.sub.Close()
		return nil, err
	}
	return m, nil
}

// Load re-reads every table from the store, replacing the projection
// wholesale. Used at startup and after anything that bypasses change
// notifications.
func (m *Mirror) Load(ctx context.Context) error {
	recordings, err := m.store.ListRecordings(ctx)
	if err != nil {
		return err
	}
	transformations, err := m.store.ListTransformations(ctx)
	if err != nil {
		return err
	}
	pipelines, err := m.store.ListPipelines(ctx)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.recordings = make(map[string]model.Recording, len(recordings))
	for _, r := range recordings {
		m.recordings[r.ID] = r
	}
	m.transformations = make(map[string]model.Transformation, len(transformations))
	for _, t := range transformations {
		m.transformations[t.ID] = t
	}
	m.pipelines = make(map[string]model.Pipeline, len(pipelines))
	for _, p := range pipelines {
		m.pipelines[p.ID] = p
	}
	m.runs = make(map[string]model.PipelineRun)
	return nil
}

// Close detaches the mirror from the store. The projection stops updating
// but remains readable.
func (m *Mirror) Close() {
	m.sub.Close()
}

// apply folds one committed change into the projection.
func (m *Mirror) apply(c store.Change) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch c.Table {
	case "recordings":
		if c.Op == store.OpDelete {
			delete(m.recordings, c.ID)
		} else if rec, ok := c.Entity.(model.Recording); ok {
			m.recordings[c.ID] = rec
		}
	case "transformations":
		if c.Op == store.OpDelete {
			delete(m.transformations, c.ID)
		} else if t, ok := c.Entity.(model.Transformation); ok {
			m.transformations[c.ID] = t
		}
	case "pipelines":
		if c.Op == store.OpDelete {
			delete(m.pipelines, c.ID)
		} else if p, ok := c.Entity.(model.Pipeline); ok {
			m.pipelines[c.ID] = p
		}
	case "pipelineRuns":
		if c.Op == store.OpDelete {
			delete(m.runs, c.ID)
		} else if run, ok := c.Entity.(model.PipelineRun); ok {
			m.runs[c.ID] = run
		}
	}
}

// Recording returns one recording by ID.
func (m *Mirror) Recording(id string) (model.Recording, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.recordings[id]
	return rec, ok
}

// Recordings returns all recordings, newest first.
func (m *Mirror) Recordings() []model.Recording {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.Recording, 0, len(m.recordings))
	for _, r := range m.recordings {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Transformations returns all transformations ordered by name.
func (m *Mirror) Transformations() []model.Transformation {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.Transformation, 0, len(m.transformations))
	for _, t := range m.transformations {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Pipelines returns all pipelines ordered by title.
func (m *Mirror) Pipelines() []model.Pipeline {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.Pipeline, 0, len(m.pipelines))
	for _, p := range m.pipelines {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Title != out[j].Title {
			return out[i].Title < out[j].Title
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// RunsForRecording returns the observed runs against one recording, most
// recent first. Only runs seen since the mirror opened are present; the
// store remains the source of truth for history.
func (m *Mirror) RunsForRecording(recordingID string) []model.PipelineRun {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []model.PipelineRun{}
	for _, run := range m.runs {
		if run.RecordingID == recordingID {
			out = append(out, run)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.After(out[j].StartedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}
