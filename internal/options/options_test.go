package options

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	s := Default()

	for _, c := range Categories() {
		assert.True(t, s.Enabled(c), "category %s should default to enabled", c)
	}
	assert.Equal(t, "", s.CustomPattern)
	assert.Equal(t, "[CUSTOM]", s.CustomReplacement)
	assert.False(t, s.CustomRuleActive())
}

func TestUpdateChangesOnlyNamedField(t *testing.T) {
	for _, c := range Categories() {
		t.Run(string(c), func(t *testing.T) {
			before := Default()
			after, err := Update(before, Field(c), false)
			require.NoError(t, err)

			assert.False(t, after.Enabled(c))
			assert.True(t, before.Enabled(c), "input set must not be mutated")

			restored := after.With(c, true)
			if diff := cmp.Diff(before, restored); diff != "" {
				t.Errorf("unexpected change outside %s (-want +got):\n%s", c, diff)
			}
		})
	}

	t.Run("custom fields", func(t *testing.T) {
		before := Default()
		after, err := Update(before, FieldCustomPattern, `\bINV-\d+\b`)
		require.NoError(t, err)
		after, err = Update(after, FieldCustomReplacement, "[INVOICE]")
		require.NoError(t, err)

		want := before
		want.CustomPattern = `\bINV-\d+\b`
		want.CustomReplacement = "[INVOICE]"
		if diff := cmp.Diff(want, after); diff != "" {
			t.Errorf("custom update mismatch (-want +got):\n%s", diff)
		}
		assert.Equal(t, "", before.CustomPattern)
	})
}

func TestUpdateSequenceKeepsAllKeys(t *testing.T) {
	s := Default()
	steps := []struct {
		field Field
		value any
	}{
		{Field(CategoryNames), false},
		{Field(CategoryURLs), false},
		{FieldCustomPattern, "abc"},
		{Field(CategoryNames), true},
		{FieldCustomPattern, ""},
	}
	for _, step := range steps {
		var err error
		s, err = Update(s, step.field, step.value)
		require.NoError(t, err)
	}

	data, err := json.Marshal(s)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	for _, c := range Categories() {
		assert.Contains(t, raw, string(c))
	}
	assert.Contains(t, raw, "customRegex")
	assert.Contains(t, raw, "customReplacement")
	assert.Equal(t, false, raw["urls"])
	assert.Equal(t, true, raw["names"])
}

func TestUpdateRejectsBadInput(t *testing.T) {
	s := Default()

	_, err := Update(s, Field("passport"), true)
	assert.Error(t, err)

	_, err = Update(s, Field(CategoryEmails), "yes")
	assert.Error(t, err)

	_, err = Update(s, FieldCustomPattern, true)
	assert.Error(t, err)
}

func TestParseField(t *testing.T) {
	tests := []struct {
		in   string
		want Field
	}{
		{"customRegex", FieldCustomPattern},
		{"customPattern", FieldCustomPattern},
		{"customReplacement", FieldCustomReplacement},
		{"customReplacementToken", FieldCustomReplacement},
		{"credit_cards", Field(CategoryCreditCards)},
	}
	for _, tt := range tests {
		got, err := ParseField(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}

	_, err := ParseField("nope")
	assert.Error(t, err)
}

func TestWithDisabled(t *testing.T) {
	s, err := Default().WithDisabled([]string{"names", " URLs "})
	require.NoError(t, err)
	assert.False(t, s.Names)
	assert.False(t, s.URLs)
	assert.Len(t, s.EnabledCategories(), len(Categories())-2)

	_, err = Default().WithDisabled([]string{"bogus"})
	assert.Error(t, err)
}
