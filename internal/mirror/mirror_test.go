package mirror

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/voxlog/voxlog/internal/model"
	"github.com/voxlog/voxlog/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_LoadsExistingRows(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.AddRecording(ctx, model.Recording{ID: "rec-1", Title: "Existing"})
	require.NoError(t, err)
	_, err = s.AddPipeline(ctx, model.Pipeline{ID: "pipe-1", Title: "Cleanup"})
	require.NoError(t, err)

	m, err := Open(ctx, s)
	require.NoError(t, err)
	defer m.Close()

	rec, ok := m.Recording("rec-1")
	require.True(t, ok)
	require.Equal(t, "Existing", rec.Title)
	require.Len(t, m.Pipelines(), 1)
}

func TestMirror_ReflectsMutationsImmediately(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	m, err := Open(ctx, s)
	require.NoError(t, err)
	defer m.Close()

	_, err = s.AddRecording(ctx, model.Recording{ID: "rec-1", Title: "New"})
	require.NoError(t, err)

	// Synchronous notification: visible as soon as the call returns.
	rec, ok := m.Recording("rec-1")
	require.True(t, ok)
	require.Equal(t, "New", rec.Title)

	rec.Title = "Renamed"
	_, err = s.UpdateRecording(ctx, rec)
	require.NoError(t, err)
	rec, _ = m.Recording("rec-1")
	require.Equal(t, "Renamed", rec.Title)

	require.NoError(t, s.DeleteRecording(ctx, "rec-1"))
	_, ok = m.Recording("rec-1")
	require.False(t, ok)
}

func TestMirror_RecordingsNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	m, err := Open(ctx, s)
	require.NoError(t, err)
	defer m.Close()

	base := time.UnixMilli(1700000000000).UTC()
	for i, id := range []string{"rec-a", "rec-b", "rec-c"} {
		_, err := s.AddRecording(ctx, model.Recording{
			ID:        id,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	list := m.Recordings()
	require.Len(t, list, 3)
	require.Equal(t, "rec-c", list[0].ID)
	require.Equal(t, "rec-a", list[2].ID)
}

func TestMirror_TracksRuns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	m, err := Open(ctx, s)
	require.NoError(t, err)
	defer m.Close()

	run, err := s.StartRun(ctx, "pipe-1", "rec-1", "input")
	require.NoError(t, err)

	runs := m.RunsForRecording("rec-1")
	require.Len(t, runs, 1)
	require.Equal(t, model.RunRunning, runs[0].Status)

	now := time.Now().UTC()
	run.Status = model.RunCompleted
	run.CompletedAt = &now
	_, err = s.UpdateRun(ctx, run)
	require.NoError(t, err)

	runs = m.RunsForRecording("rec-1")
	require.Len(t, runs, 1)
	require.Equal(t, model.RunCompleted, runs[0].Status)

	require.Empty(t, m.RunsForRecording("rec-other"))
}

func TestClose_StopsUpdates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	m, err := Open(ctx, s)
	require.NoError(t, err)
	m.Close()

	_, err = s.AddRecording(ctx, model.Recording{ID: "rec-1"})
	require.NoError(t, err)

	_, ok := m.Recording("rec-1")
	require.False(t, ok, "closed mirror must not keep updating")

	// A full reload still works on a closed mirror.
	require.NoError(t, m.Load(ctx))
	_, ok = m.Recording("rec-1")
	require.True(t, ok)
}

func TestMirror_CascadeDeleteRemovesBothSides(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.AddTransformation(ctx, model.Transformation{
		ID:          "t-1",
		Name:        "rule",
		Kind:        model.KindFindReplace,
		FindReplace: &model.FindReplaceParams{Find: "a", Replace: "b"},
	})
	require.NoError(t, err)
	_, err = s.AddPipeline(ctx, model.Pipeline{
		ID:    "pipe-1",
		Steps: []model.PipelineStep{{TransformationID: "t-1", Enabled: true}},
	})
	require.NoError(t, err)

	m, err := Open(ctx, s)
	require.NoError(t, err)
	defer m.Close()

	require.NoError(t, s.DeletePipelineCascade(ctx, "pipe-1"))
	require.Empty(t, m.Pipelines())
	require.Empty(t, m.Transformations())
}
