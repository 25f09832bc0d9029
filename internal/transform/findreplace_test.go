package transform

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/voxlog/voxlog/internal/model"
)

func TestFindReplace_Literal(t *testing.T) {
	tr, err := New(model.Transformation{
		ID:          "t-1",
		Kind:        model.KindFindReplace,
		FindReplace: &model.FindReplaceParams{Find: "teh", Replace: "the"},
	}, nil)
	require.NoError(t, err)

	out, err := tr.Apply(context.Background(), "teh quick fox said teh word")
	require.NoError(t, err)
	require.Equal(t, "the quick fox said the word", out)
}

func TestFindReplace_LiteralTreatsPatternVerbatim(t *testing.T) {
	tr, err := New(model.Transformation{
		Kind:        model.KindFindReplace,
		FindReplace: &model.FindReplaceParams{Find: "a.c", Replace: "X"},
	}, nil)
	require.NoError(t, err)

	out, err := tr.Apply(context.Background(), "abc a.c adc")
	require.NoError(t, err)
	require.Equal(t, "abc X adc", out)
}

func TestFindReplace_RegexWithGroups(t *testing.T) {
	tr, err := New(model.Transformation{
		Kind: model.KindFindReplace,
		FindReplace: &model.FindReplaceParams{
			Find:    `(\w+)@example\.com`,
			Replace: "$1@voxlog.dev",
			IsRegex: true,
		},
	}, nil)
	require.NoError(t, err)

	out, err := tr.Apply(context.Background(), "mail alice@example.com and bob@example.com")
	require.NoError(t, err)
	require.Equal(t, "mail alice@voxlog.dev and bob@voxlog.dev", out)
}

func TestFindReplace_InvalidRegexFailsAtCompile(t *testing.T) {
	_, err := New(model.Transformation{
		Kind:        model.KindFindReplace,
		FindReplace: &model.FindReplaceParams{Find: "([unclosed", IsRegex: true},
	}, nil)
	require.Error(t, err)
}

func TestFindReplace_NoMatchLeavesInputUntouched(t *testing.T) {
	tr, err := New(model.Transformation{
		Kind:        model.KindFindReplace,
		FindReplace: &model.FindReplaceParams{Find: "absent", Replace: "x"},
	}, nil)
	require.NoError(t, err)

	out, err := tr.Apply(context.Background(), "nothing to see here")
	require.NoError(t, err)
	require.Equal(t, "nothing to see here", out)
}

func TestNew_MissingParams(t *testing.T) {
	_, err := New(model.Transformation{ID: "t-1", Kind: model.KindFindReplace}, nil)
	require.Error(t, err)

	_, err = New(model.Transformation{ID: "t-2", Kind: model.KindPromptTransform}, nil)
	require.Error(t, err)

	_, err = New(model.Transformation{ID: "t-3", Kind: "mystery"}, nil)
	require.Error(t, err)
}
