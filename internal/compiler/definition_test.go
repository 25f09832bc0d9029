package compiler

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxlog/voxlog/internal/model"
	"github.com/voxlog/voxlog/internal/store"
)

func compileString(t *testing.T, src string) (*Definition, error) {
	t.Helper()
	ctx := cuecontext.New()
	v := ctx.CompileString(src)
	require.NoError(t, v.Err())
	return CompilePipeline(v.LookupPath(cue.ParsePath("pipeline")))
}

func TestCompilePipelineBasic(t *testing.T) {
	def, err := compileString(t, `
		pipeline: {
			title:       "Cleanup"
			description: "tidy dictation"
			steps: [
				{
					name:    "strip fillers"
					kind:    "find_replace"
					find:    "\\b(um|uh)\\b"
					replace: ""
					isRegex: true
				},
				{
					name:         "summarize"
					kind:         "prompt_transform"
					model:        "gpt-4o-mini"
					systemPrompt: "You summarize notes."
					userPrompt:   "Summarize: {{text}}"
					enabled:      false
				},
			]
		}
	`)
	require.NoError(t, err)

	assert.Equal(t, "Cleanup", def.Title)
	assert.Equal(t, "tidy dictation", def.Description)
	require.Len(t, def.Steps, 2)

	first := def.Steps[0]
	assert.True(t, first.Enabled, "enabled defaults to true")
	assert.Equal(t, model.KindFindReplace, first.Transformation.Kind)
	require.NotNil(t, first.Transformation.FindReplace)
	assert.True(t, first.Transformation.FindReplace.IsRegex)

	second := def.Steps[1]
	assert.False(t, second.Enabled)
	assert.Equal(t, model.KindPromptTransform, second.Transformation.Kind)
	require.NotNil(t, second.Transformation.PromptTransform)
	assert.Equal(t, "gpt-4o-mini", second.Transformation.PromptTransform.Model)
}

func TestCompilePipelineMissingTitle(t *testing.T) {
	_, err := compileString(t, `
		pipeline: {
			steps: [{name: "x", kind: "find_replace", find: "a"}]
		}
	`)
	require.Error(t, err)
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "title", ce.Field)
}

func TestCompilePipelineEmptySteps(t *testing.T) {
	_, err := compileString(t, `
		pipeline: {
			title: "Empty"
			steps: []
		}
	`)
	require.Error(t, err)
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "steps", ce.Field)
}

func TestCompilePipelineUnknownKind(t *testing.T) {
	_, err := compileString(t, `
		pipeline: {
			title: "Bad"
			steps: [{name: "x", kind: "reverse"}]
		}
	`)
	require.Error(t, err)
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "kind", ce.Field)
}

func TestCompilePipelineMissingKindParams(t *testing.T) {
	_, err := compileString(t, `
		pipeline: {
			title: "Bad"
			steps: [{name: "x", kind: "find_replace"}]
		}
	`)
	require.Error(t, err)
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "find", ce.Field)

	_, err = compileString(t, `
		pipeline: {
			title: "Bad"
			steps: [{name: "x", kind: "prompt_transform", model: "m"}]
		}
	`)
	require.Error(t, err)
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "userPrompt", ce.Field)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cleanup.cue")
	require.NoError(t, os.WriteFile(path, []byte(`
		pipeline: {
			title: "From file"
			steps: [{name: "x", kind: "find_replace", find: "a", replace: "b"}]
		}
	`), 0o644))

	def, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "From file", def.Title)
}

func TestLoadFileSyntaxErrorHasPosition(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.cue")
	require.NoError(t, os.WriteFile(path, []byte("pipeline: {\n\ttitle: \n}\n"), 0o644))

	_, err := LoadFile(path)
	require.Error(t, err)
}

func TestLoadFileMissingPipeline(t *testing.T) {
	path := filepath.Join(t.TempDir(), "other.cue")
	require.NoError(t, os.WriteFile(path, []byte(`something: {a: 1}`), 0o644))

	_, err := LoadFile(path)
	require.Error(t, err)
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "pipeline", ce.Field)
}

func TestImport(t *testing.T) {
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer s.Close()

	def, err := compileString(t, `
		pipeline: {
			title: "Imported"
			steps: [
				{name: "first", kind: "find_replace", find: "a", replace: "b"},
				{name: "second", kind: "find_replace", find: "b", replace: "c", enabled: false},
			]
		}
	`)
	require.NoError(t, err)

	ctx := context.Background()
	p, err := Import(ctx, s, def)
	require.NoError(t, err)
	require.Len(t, p.Steps, 2)
	assert.True(t, p.Steps[0].Enabled)
	assert.False(t, p.Steps[1].Enabled)

	// Every step's transformation landed in the store.
	for _, step := range p.Steps {
		tr, err := s.GetTransformation(ctx, step.TransformationID)
		require.NoError(t, err)
		assert.Equal(t, model.KindFindReplace, tr.Kind)
	}

	stored, err := s.GetPipeline(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Imported", stored.Title)
}
