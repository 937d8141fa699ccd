package testresult

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_Object(t *testing.T) {
	t.Parallel()

	rec, err := Decode(strings.NewReader(`{"state":"success","context":"ci/build","id":12345678901234567890}`))
	require.NoError(t, err)

	assert.Equal(t, "success", rec["state"])
	assert.Equal(t, "ci/build", rec["context"])
	assert.Equal(t, json.Number("12345678901234567890"), rec["id"])
}

func TestDecode_Malformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
	}{
		{name: "empty", input: ""},
		{name: "whitespace", input: "   \n"},
		{name: "not json", input: "state=success"},
		{name: "truncated", input: `{"state":"success"`},
		{name: "array", input: `[{"state":"success"}]`},
		{name: "string", input: `"success"`},
		{name: "null", input: `null`},
		{name: "trailing object", input: `{"state":"success"}{"state":"failure"}`},
		{name: "trailing garbage", input: `{"state":"success"} x`},
		{name: "invalid utf-8 in unread field", input: "{\"state\":\"success\",\"x\":\"a\xffb\"}"},
		{name: "invalid utf-8 outside strings", input: "{\"state\":\"success\"}\xff"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Decode(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestDecode_TrailingWhitespaceAllowed(t *testing.T) {
	t.Parallel()

	rec, err := Decode(strings.NewReader("{\"state\":\"failure\"}\n\n"))
	require.NoError(t, err)
	assert.Equal(t, "failure", rec["state"])
}

func TestEncode_RoundTripPreservesValues(t *testing.T) {
	t.Parallel()

	input := `{"state":"pending","nested":{"a":[1,2.50,"x",null,true]},"big":9007199254740993,"html":"<a&b>"}`

	rec, err := Decode(strings.NewReader(input))
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, Encode(&out, rec))

	assert.JSONEq(t, input, out.String())
	assert.Contains(t, out.String(), "9007199254740993")
	assert.Contains(t, out.String(), "<a&b>")
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

func TestEncode_WriteError(t *testing.T) {
	t.Parallel()

	err := Encode(failingWriter{}, Record{"state": "success"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken pipe")
}

func TestRecord_State(t *testing.T) {
	t.Parallel()

	state, err := Record{"state": "success"}.State()
	require.NoError(t, err)
	assert.Equal(t, StateSuccess, state)

	state, err = Record{"state": json.Number("1")}.State()
	require.NoError(t, err)
	assert.Equal(t, "1", state)

	_, err = Record{"description": "x"}.State()
	require.ErrorIs(t, err, ErrMissingField)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestRecord_Description(t *testing.T) {
	t.Parallel()

	desc, err := Record{}.Description()
	require.NoError(t, err)
	assert.Empty(t, desc)

	desc, err = Record{"description": nil}.Description()
	require.NoError(t, err)
	assert.Empty(t, desc)

	desc, err = Record{"description": "build broke"}.Description()
	require.NoError(t, err)
	assert.Equal(t, "build broke", desc)

	_, err = Record{"description": []any{"x"}}.Description()
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestRecord_TargetURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		rec     Record
		want    string
		wantOK  bool
		wantErr bool
	}{
		{name: "absent", rec: Record{}},
		{name: "null", rec: Record{"target_url": nil}},
		{name: "empty", rec: Record{"target_url": ""}},
		{name: "false", rec: Record{"target_url": false}},
		{name: "set", rec: Record{"target_url": "http://ci/job/1/console"}, want: "http://ci/job/1/console", wantOK: true},
		{name: "number", rec: Record{"target_url": json.Number("3")}, wantErr: true},
		{name: "true", rec: Record{"target_url": true}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, ok, err := tt.rec.TargetURL()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformed)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}

func TestRecord_Setters(t *testing.T) {
	t.Parallel()

	rec := Record{"state": "success"}
	rec.SetDescription("done")
	rec.SetTargetURL("https://example.org/a.log")

	assert.Equal(t, Record{
		"state":       "success",
		"description": "done",
		"target_url":  "https://example.org/a.log",
	}, rec)
}
