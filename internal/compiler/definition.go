// Package compiler parses CUE pipeline definitions into storable pipelines
// and transformations. Definitions are authored as CUE files and imported
// once; after import the store is the source of truth.
package compiler

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/voxlog/voxlog/internal/model"
)

// StepDef is one step of a pipeline definition: a transformation declared
// inline plus its enabled flag.
type StepDef struct {
	Transformation model.Transformation
	Enabled        bool
}

// Definition is a compiled pipeline definition, ready for import.
type Definition struct {
	Title       string
	Description string
	Steps       []StepDef
}

// LoadFile compiles the pipeline definition in a CUE file.
//
// The file declares a top-level pipeline struct:
//
//	pipeline: {
//		title: "Cleanup"
//		steps: [
//			{name: "strip fillers", kind: "find_replace", find: "um ", replace: ""},
//		]
//	}
func LoadFile(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read definition %s: %w", path, err)
	}

	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(path))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	pv := v.LookupPath(cue.ParsePath("pipeline"))
	if !pv.Exists() {
		return nil, &CompileError{
			Field:   "pipeline",
			Message: "top-level pipeline struct is required",
			Pos:     v.Pos(),
		}
	}
	return CompilePipeline(pv)
}

// CompilePipeline parses a CUE value holding one pipeline struct.
func CompilePipeline(v cue.Value) (*Definition, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	def := &Definition{}

	titleVal := v.LookupPath(cue.ParsePath("title"))
	if !titleVal.Exists() {
		return nil, &CompileError{
			Field:   "title",
			Message: "title is required",
			Pos:     v.Pos(),
		}
	}
	title, err := titleVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	def.Title = title

	if descVal := v.LookupPath(cue.ParsePath("description")); descVal.Exists() {
		desc, err := descVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		def.Description = desc
	}

	stepsVal := v.LookupPath(cue.ParsePath("steps"))
	if !stepsVal.Exists() {
		return nil, &CompileError{
			Field:   "steps",
			Message: "at least one step is required",
			Pos:     v.Pos(),
		}
	}
	iter, err := stepsVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		step, err := parseStep(iter.Value())
		if err != nil {
			return nil, err
		}
		def.Steps = append(def.Steps, step)
	}
	if len(def.Steps) == 0 {
		return nil, &CompileError{
			Field:   "steps",
			Message: "at least one step is required",
			Pos:     stepsVal.Pos(),
		}
	}

	return def, nil
}

// parseStep parses one step struct into its inline transformation.
func parseStep(v cue.Value) (StepDef, error) {
	step := StepDef{Enabled: true}

	if ev := v.LookupPath(cue.ParsePath("enabled")); ev.Exists() {
		enabled, err := ev.Bool()
		if err != nil {
			return step, formatCUEError(err)
		}
		step.Enabled = enabled
	}

	name, err := requiredString(v, "name")
	if err != nil {
		return step, err
	}
	kind, err := requiredString(v, "kind")
	if err != nil {
		return step, err
	}

	t := model.Transformation{
		Name: name,
		Kind: model.TransformationKind(kind),
	}
	if dv := v.LookupPath(cue.ParsePath("description")); dv.Exists() {
		desc, err := dv.String()
		if err != nil {
			return step, formatCUEError(err)
		}
		t.Description = desc
	}

	switch t.Kind {
	case model.KindFindReplace:
		params, err := parseFindReplace(v)
		if err != nil {
			return step, err
		}
		t.FindReplace = params

	case model.KindPromptTransform:
		params, err := parsePromptTransform(v)
		if err != nil {
			return step, err
		}
		t.PromptTransform = params

	default:
		return step, &CompileError{
			Field:   "kind",
			Message: fmt.Sprintf("unknown transformation kind %q", kind),
			Pos:     v.Pos(),
		}
	}

	step.Transformation = t
	return step, nil
}

func parseFindReplace(v cue.Value) (*model.FindReplaceParams, error) {
	find, err := requiredString(v, "find")
	if err != nil {
		return nil, err
	}
	params := &model.FindReplaceParams{Find: find}

	if rv := v.LookupPath(cue.ParsePath("replace")); rv.Exists() {
		replace, err := rv.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		params.Replace = replace
	}
	if rv := v.LookupPath(cue.ParsePath("isRegex")); rv.Exists() {
		isRegex, err := rv.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		params.IsRegex = isRegex
	}
	return params, nil
}

func parsePromptTransform(v cue.Value) (*model.PromptTransformParams, error) {
	modelName, err := requiredString(v, "model")
	if err != nil {
		return nil, err
	}
	userPrompt, err := requiredString(v, "userPrompt")
	if err != nil {
		return nil, err
	}
	params := &model.PromptTransformParams{Model: modelName, UserPrompt: userPrompt}

	if sv := v.LookupPath(cue.ParsePath("systemPrompt")); sv.Exists() {
		sys, err := sv.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		params.SystemPrompt = sys
	}
	return params, nil
}

func requiredString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", &CompileError{
			Field:   field,
			Message: field + " is required",
			Pos:     v.Pos(),
		}
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

// CompileError is a definition error with CUE source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}
	return firstErr
}
