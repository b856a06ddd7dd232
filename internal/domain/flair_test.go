package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlairFilter_Matches(t *testing.T) {
	f, err := NewFlairFilter([]string{"Funny", " Meme ", "C++"})
	require.NoError(t, err)

	cases := []struct {
		name string
		tag  string
		want bool
	}{
		{"exact", "Funny", true},
		{"case-insensitive", "fUnNy", true},
		{"unicode emoji prefix", "🙂 funny", true},
		{"reddit emoji code prefix", ":laugh: Funny", true},
		{"stacked emoji prefix", ":a::b: meme", true},
		{"surrounding whitespace", "  Meme  ", true},
		{"regex metacharacters quoted", "c++", true},
		{"trailing words", "funny business", false},
		{"leading words", "not funny", false},
		{"substring", "Funnyish", false},
		{"empty", "", false},
		{"emoji only", ":laugh:", false},
		{"unlisted", "Serious", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, f.Matches(tc.tag))
		})
	}
}

func TestFlairFilter_EmptyAllowListRejectsEverything(t *testing.T) {
	f, err := NewFlairFilter(nil)
	require.NoError(t, err)

	assert.False(t, f.Enabled())
	assert.False(t, f.Matches(""))
	assert.False(t, f.Matches("anything"))
}

func TestNewFlairFilter_RejectsBlankFlairs(t *testing.T) {
	for _, flair := range []string{"", "   ", "🔥", ":fire:"} {
		t.Run(flair, func(t *testing.T) {
			_, err := NewFlairFilter([]string{"OC", flair})
			assert.Error(t, err)
		})
	}
}

func TestAllowAllTags(t *testing.T) {
	assert.True(t, AllowAllTags{}.Matches(""))
	assert.True(t, AllowAllTags{}.Matches("anything"))
}

func TestFlairFilter_ConfiguredFlairWithEmojiPrefix(t *testing.T) {
	f, err := NewFlairFilter([]string{":star: OC"})
	require.NoError(t, err)

	assert.True(t, f.Matches("OC"))
	assert.True(t, f.Matches(":star: oc"))
	assert.False(t, f.Matches(":star: OC content"))
}

func TestCleanFlair(t *testing.T) {
	assert.Equal(t, "Funny", CleanFlair("🙂 Funny"))
	assert.Equal(t, "Funny", CleanFlair(":smile: Funny "))
	assert.Equal(t, "[OC] art", CleanFlair("[OC] art"))
	assert.Equal(t, "", CleanFlair("   "))
}
