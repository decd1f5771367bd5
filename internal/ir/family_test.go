package ir

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFamily(t *testing.T) {
	tests := []struct {
		label string
		want  SourceFamily
	}{
		{"firefox", FamilyFirefox},
		{"Firefox", FamilyFirefox},
		{"FIREFOX (default-release)", FamilyFirefox},
		{"firefox_auto", FamilyFirefox},
		{"  chrome ", FamilyChrome},
		{"Chrome JSON", FamilyChrome},
		{"Chromium", FamilyChrome},
		{"html", FamilyHTML},
		{"Netscape export", FamilyHTML},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			got, err := ParseFamily(tt.label)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseFamily_Unknown(t *testing.T) {
	for _, label := range []string{"", "   ", "safari", "fire"} {
		_, err := ParseFamily(label)
		require.Error(t, err, "label %q", label)
		assert.True(t, errors.Is(err, ErrUnknownFamily))
	}
}

func TestSourceFamily_Contains(t *testing.T) {
	ff := Bookmark{Family: FamilyFirefox}
	assert.True(t, FamilyFirefox.Contains(ff))
	assert.False(t, FamilyChrome.Contains(ff))
	assert.False(t, SourceFamily("").Contains(Bookmark{}))
}

func TestSourceFamily_Valid(t *testing.T) {
	for _, f := range Families {
		assert.True(t, f.Valid())
	}
	assert.False(t, SourceFamily("safari").Valid())
}
