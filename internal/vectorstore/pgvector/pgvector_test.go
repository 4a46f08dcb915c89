package pgvector

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVectorLiteral(t *testing.T) {
	assert.Equal(t, "[]", VectorLiteral(nil))
	assert.Equal(t, "[1.000000]", VectorLiteral([]float32{1}))
	assert.Equal(t, "[0.500000,-0.250000,0.123457]", VectorLiteral([]float32{0.5, -0.25, 0.1234567}))
}
