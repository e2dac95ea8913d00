package platforms

import (
	"testing"

	"github.com/reviewloop/reviewloop/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStarRatingToInt(t *testing.T) {
	tests := []struct {
		star     string
		expected int
	}{
		{"ONE", 1},
		{"TWO", 2},
		{"THREE", 3},
		{"FOUR", 4},
		{"FIVE", 5},
		{"STAR_RATING_UNSPECIFIED", 0},
		{"", 0},
	}

	for _, tt := range tests {
		t.Run(tt.star, func(t *testing.T) {
			assert.Equal(t, tt.expected, StarRatingToInt(tt.star))
		})
	}
}

func TestParseExternalRef(t *testing.T) {
	accountRef, locationRef, err := ParseExternalRef("108234/5512")
	require.NoError(t, err)
	assert.Equal(t, "108234", accountRef)
	assert.Equal(t, "5512", locationRef)
}

func TestParseExternalRef_Malformed(t *testing.T) {
	tests := []struct {
		name string
		ref  string
	}{
		{"Empty", ""},
		{"No separator", "108234"},
		{"Missing location", "108234/"},
		{"Missing account", "/5512"},
		{"Too many parts", "a/b/c"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ParseExternalRef(tt.ref)
			assert.Error(t, err)
		})
	}
}

func TestNewRegistry(t *testing.T) {
	registry := NewRegistry(NewGoogleClient(), NewZaloClient(), NewDirectClient())

	assert.Len(t, registry, 3)
	assert.True(t, registry[models.PlatformGoogle].RequiresRemotePublish())
	assert.True(t, registry[models.PlatformZalo].RequiresRemotePublish())
	assert.False(t, registry[models.PlatformDirect].RequiresRemotePublish())
}
