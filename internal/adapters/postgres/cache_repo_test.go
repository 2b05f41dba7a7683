package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, "observations:", escapeLike("observations:"))
	assert.Equal(t, `a\_b\%c\\`, escapeLike(`a_b%c\`))
}
