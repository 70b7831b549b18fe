package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlugify(t *testing.T) {
	assert.Equal(t, "acme-corp", Slugify("  Acme   Corp! "))
	assert.Equal(t, "צוות-אלפא", Slugify("צוות אלפא"))
	assert.Equal(t, "", Slugify("!!!"))
}

func TestGenerateSlug(t *testing.T) {
	slug, err := GenerateSlug("Acme Corp")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(slug, "acme-corp-"))
	assert.True(t, IsValidSlug(slug))

	other, err := GenerateSlug("Acme Corp")
	require.NoError(t, err)
	assert.NotEqual(t, slug, other)

	fallback, err := GenerateSlug("???")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(fallback, "org-"))
}

func TestIsValidSlug(t *testing.T) {
	assert.True(t, IsValidSlug("rocks-team"))
	assert.False(t, IsValidSlug("Rocks Team"))
	assert.False(t, IsValidSlug("-leading"))
	assert.False(t, IsValidSlug(""))
}

func TestNewPaginationParams(t *testing.T) {
	p := NewPaginationParams(0, 0)
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 20, p.Limit)
	assert.Equal(t, 0, p.Offset)

	p = NewPaginationParams(3, 10)
	assert.Equal(t, 20, p.Offset)

	p = NewPaginationParams(2, 1000)
	assert.Equal(t, 20, p.Limit)
	assert.Equal(t, int64(7), p.Response(7).Total)
}
