package env

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseBool(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    bool
		wantErr bool
	}{
		{"1", "1", true, false},
		{"true lowercase", "true", true, false},
		{"true mixedcase", "tRuE", true, false},
		{"yes titlecase", "Yes", true, false},
		{"0", "0", false, false},
		{"false uppercase", "FALSE", false, false},
		{"no lowercase", "no", false, false},
		{"empty", "", false, false},
		{"padded true", "  true\t", true, false},
		{"invalid", "maybe", false, true},
		{"number", "2", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseBool(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidBool) {
					t.Fatalf("ParseBool(%q) error = %v, want %v", tt.input, err, ErrInvalidBool)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseBool(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseBool(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestToMapAndBack(t *testing.T) {
	m := ToMap([]string{"A=1", "B=x=y", "broken", "C="})

	assert.Equal(t, map[string]string{"A": "1", "B": "x=y", "C": ""}, m)
	assert.Equal(t, []string{"A=1", "B=x=y", "C="}, ToAssignments(m))
}

func TestMerge(t *testing.T) {
	t.Setenv("SNOWHOOK_ENV_TEST", "base")

	merged := ToMap(Merge(map[string]string{"SNOWHOOK_ENV_TEST": "overlay", "SNOWHOOK_ENV_EXTRA": "1"}))

	assert.Equal(t, "overlay", merged["SNOWHOOK_ENV_TEST"])
	assert.Equal(t, "1", merged["SNOWHOOK_ENV_EXTRA"])
}
