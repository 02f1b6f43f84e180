package differenceutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDifferenceAndIntersectionStrings(t *testing.T) {
	onlySrc, both, onlyDes := DifferenceAndIntersectionStrings(
		[]string{"c", "a", "b", "a"},
		[]string{"d", "b", "c"},
	)
	assert.Equal(t, []string{"a"}, onlySrc)
	assert.Equal(t, []string{"b", "c"}, both)
	assert.Equal(t, []string{"d"}, onlyDes)

	onlySrc, both, onlyDes = DifferenceAndIntersectionStrings(nil, nil)
	assert.Nil(t, onlySrc)
	assert.Nil(t, both)
	assert.Nil(t, onlyDes)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, Keys(map[string]int{"c": 3, "a": 1, "b": 2}))
	assert.Empty(t, Keys(map[string]bool{}))
}
