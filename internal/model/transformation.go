package model

import "time"

// TransformationKind discriminates the two transformation variants.
type TransformationKind string

const (
	// KindFindReplace is a literal or regexp find/replace rule.
	KindFindReplace TransformationKind = "find_replace"
	// KindPromptTransform rewrites text through a chat-completion model.
	KindPromptTransform TransformationKind = "prompt_transform"
)

// FindReplaceParams parameterizes a find_replace transformation.
// When IsRegex is true, Find is compiled as a Go regexp and Replace may use
// $1-style group references.
type FindReplaceParams struct {
	Find    string `json:"find"`
	Replace string `json:"replace"`
	IsRegex bool   `json:"isRegex"`
}

// PromptTransformParams parameterizes a prompt_transform transformation.
// The user prompt template must contain the {{text}} placeholder, which is
// substituted with the input text at execution time.
type PromptTransformParams struct {
	Model        string `json:"model"`
	SystemPrompt string `json:"systemPrompt"`
	UserPrompt   string `json:"userPrompt"`
}

// Transformation is a reusable text-processing rule referenced by pipelines.
// Exactly one of FindReplace / PromptTransform is set, matching Kind.
type Transformation struct {
	ID          string
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Kind        TransformationKind

	FindReplace     *FindReplaceParams
	PromptTransform *PromptTransformParams
}
