package transform

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/voxlog/voxlog/internal/model"
)

// findReplace applies a literal or regexp substitution to the whole input.
type findReplace struct {
	find    string
	replace string
	re      *regexp.Regexp
}

func newFindReplace(p model.FindReplaceParams) (Transformer, error) {
	fr := &findReplace{find: p.Find, replace: p.Replace}
	if p.IsRegex {
		re, err := regexp.Compile(p.Find)
		if err != nil {
			return nil, fmt.Errorf("compile find pattern %q: %w", p.Find, err)
		}
		fr.re = re
	}
	return fr, nil
}

func (f *findReplace) Apply(_ context.Context, input string) (string, error) {
	if f.re != nil {
		// Replace may use $1-style group references.
		return f.re.ReplaceAllString(input, f.replace), nil
	}
	return strings.ReplaceAll(input, f.find, f.replace), nil
}
