package transform

import (
	"context"
	"fmt"

	"github.com/voxlog/voxlog/internal/model"
)

// Transformer applies one transformation to input text.
type Transformer interface {
	Apply(ctx context.Context, input string) (string, error)
}

// New compiles a transformation into an executable Transformer. Find/replace
// rules are self-contained; prompt transformations need a chat client. The
// compile step catches bad regexps and missing parameters before any text is
// touched.
func New(t model.Transformation, chat ChatClient) (Transformer, error) {
	switch t.Kind {
	case model.KindFindReplace:
		if t.FindReplace == nil {
			return nil, fmt.Errorf("transformation %s: find_replace params missing", t.ID)
		}
		return newFindReplace(*t.FindReplace)

	case model.KindPromptTransform:
		if t.PromptTransform == nil {
			return nil, fmt.Errorf("transformation %s: prompt_transform params missing", t.ID)
		}
		if chat == nil {
			return nil, fmt.Errorf("transformation %s: no chat client configured", t.ID)
		}
		return newPromptTransform(*t.PromptTransform, chat), nil

	default:
		return nil, fmt.Errorf("transformation %s: unknown kind %q", t.ID, t.Kind)
	}
}
