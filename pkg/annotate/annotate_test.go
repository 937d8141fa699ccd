package annotate

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yaklabco/snowhook/pkg/testresult"
)

func TestMessage(t *testing.T) {
	t.Parallel()

	assert.Equal(t, SuccessMessage, Message("success"))
	assert.Equal(t, EncouragingMessage, Message("failure"))
	assert.Equal(t, EncouragingMessage, Message("pending"))
	assert.Equal(t, EncouragingMessage, Message("SUCCESS"))
	assert.Equal(t, EncouragingMessage, Message(""))
}

func TestRun(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "success without description",
			input: `{"state":"success","target_url":"x"}`,
			want:  `{"state":"success","target_url":"x","description":"Woooooooooo!"}`,
		},
		{
			name:  "failure with description",
			input: `{"state":"failure","description":"build broke"}`,
			want:  `{"state":"failure","description":"build broke We believe in you! Go respin!"}`,
		},
		{
			name:  "success with description",
			input: `{"state":"success","description":"all green"}`,
			want:  `{"state":"success","description":"all green Woooooooooo!"}`,
		},
		{
			name:  "whitespace description is stripped",
			input: `{"state":"warning","description":"  "}`,
			want:  `{"state":"warning","description":"We believe in you! Go respin!"}`,
		},
		{
			name:  "null description treated as empty",
			input: `{"state":"success","description":null}`,
			want:  `{"state":"success","description":"Woooooooooo!"}`,
		},
		{
			name:  "other fields preserved",
			input: `{"state":"fail","context":"snowpatch/build","patch":{"id":42,"tags":["a","b"]},"ratio":0.125}`,
			want:  `{"state":"fail","context":"snowpatch/build","patch":{"id":42,"tags":["a","b"]},"ratio":0.125,"description":"We believe in you! Go respin!"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var out bytes.Buffer
			require.NoError(t, Run(context.Background(), strings.NewReader(tt.input), &out))
			assert.JSONEq(t, tt.want, out.String())
		})
	}
}

func TestRun_MalformedInputWritesNothing(t *testing.T) {
	t.Parallel()

	inputs := []string{
		``,
		`not json`,
		`{"description":"no state"}`,
		`{"state":"success","description":7}`,
		`["state","success"]`,
		"{\"state\":\"success\",\"x\":\"a\xffb\"}",
	}

	for _, input := range inputs {
		var out bytes.Buffer
		err := Run(context.Background(), strings.NewReader(input), &out)
		require.Error(t, err, "input %q", input)
		require.ErrorIs(t, err, testresult.ErrMalformed, "input %q", input)
		assert.Zero(t, out.Len(), "input %q produced output", input)
	}
}

func TestRun_NonASCIIFieldsUnchanged(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	require.NoError(t, Run(context.Background(), strings.NewReader(`{"state":"success","x":"Grüße ✓"}`), &out))
	assert.Contains(t, out.String(), `"x":"Grüße ✓"`)
}

func TestAnnotate_Deterministic(t *testing.T) {
	t.Parallel()

	first := testresult.Record{"state": "failure", "description": "flaky"}
	second := testresult.Record{"state": "failure", "description": "flaky"}

	require.NoError(t, Annotate(first))
	require.NoError(t, Annotate(second))
	assert.Equal(t, first, second)
}
