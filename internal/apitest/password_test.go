package apitest

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPasswordHash(t *testing.T) {
	t.Parallel()
	a, b := hashPassword("pw"), hashPassword("pw")
	assert.False(t, bytes.Equal(a.hash, b.hash), "salted")
	assert.True(t, a.matches("pw"))
	assert.False(t, a.matches("PW"))
	assert.False(t, a.matches(""))
}
