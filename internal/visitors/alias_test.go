package visitors

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAlias(t *testing.T) {
	a := Alias("session-a")

	assert.Equal(t, a, Alias("session-a"))
	assert.Len(t, strings.Split(a, " "), 2)
	assert.NotEmpty(t, Alias(""))
}
