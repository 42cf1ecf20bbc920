package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCreatePaginationMeta(t *testing.T) {
	meta := CreatePaginationMeta(2, 20, 45)
	assert.Equal(t, 3, meta.TotalPages)
	assert.True(t, meta.HasNext)
	assert.True(t, meta.HasPrevious)

	empty := CreatePaginationMeta(1, 20, 0)
	assert.Equal(t, 1, empty.TotalPages)
	assert.False(t, empty.HasNext)
	assert.False(t, empty.HasPrevious)
}
