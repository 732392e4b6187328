package ngram

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashInvariantUnderRenaming(t *testing.T) {
	a := Hash([]string{"=", "@@x@@", "0x0"}, SideNone)
	b := Hash([]string{"=", "@@y@@", "0x0"}, SideNone)
	assert.Equal(t, a, b)
}

func TestHashInvariantUnderConsistentBijection(t *testing.T) {
	a := Hash([]string{"@@x@@", "+", "@@y@@", "=", "@@x@@"}, SideNone)
	b := Hash([]string{"@@p@@", "+", "@@q@@", "=", "@@p@@"}, SideNone)
	assert.Equal(t, a, b)

	// swapping which variable is first changes the canonical numbering
	c := Hash([]string{"@@y@@", "+", "@@x@@", "=", "@@y@@"}, SideNone)
	assert.NotEqual(t, a, c)
}

func TestHashSensitiveToPosition(t *testing.T) {
	a := Hash([]string{"a", "b", "c"}, SideNone)
	b := Hash([]string{"c", "b", "a"}, SideNone)
	assert.NotEqual(t, a, b)
}

func TestHashSideDiscriminator(t *testing.T) {
	left := Hash([]string{"a", "b"}, SideLeft)
	right := Hash([]string{"a", "b"}, SideRight)
	none := Hash([]string{"a", "b"}, SideNone)
	assert.NotEqual(t, left, right)
	assert.NotEqual(t, left, none)
}

func TestCompareAndLess(t *testing.T) {
	a := Digest{0, 0, 1}
	b := Digest{0, 0, 2}
	assert.True(t, Less(a, b))
	assert.False(t, Less(b, a))
	assert.Equal(t, -1, Compare(a, b))
	assert.Equal(t, 0, Compare(a, a))
	assert.Equal(t, 1, Compare(b, a))
}
