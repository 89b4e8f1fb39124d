package condition

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvalRegexFunction(t *testing.T) {
	ev := newFakeEvaluator()
	ev.dirs["."] = []string{"Texture1.dds", "Texture2.dds", "readme.txt"}

	ctx := context.Background()
	node, err := Parse(`regex(".*\.dds$")`)
	require.NoError(t, err)

	ok, err := Eval(ctx, node, ev)
	require.NoError(t, err)
	assert.True(t, ok, "regex should match at least one entry in the root directory")
}

func TestEvalRegexFunctionNoMatch(t *testing.T) {
	ev := newFakeEvaluator()
	ev.dirs["."] = []string{"readme.txt"}

	ctx := context.Background()
	node, err := Parse(`regex(".*\.dds$")`)
	require.NoError(t, err)

	ok, err := Eval(ctx, node, ev)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEvalNotNegatesResult(t *testing.T) {
	ev := newFakeEvaluator()
	ev.files["present.esp"] = true

	ctx := context.Background()
	node, err := Parse(`not file("present.esp")`)
	require.NoError(t, err)

	ok, err := Eval(ctx, node, ev)
	require.NoError(t, err)
	assert.False(t, ok)
}
