package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIDFromHashedStringIsDeterministic(t *testing.T) {
	a := IDFromHashedString("https://example.org/feed/item/1")
	b := IDFromHashedString("https://example.org/feed/item/1")
	assert.Equal(t, a, b)

	c := IDFromHashedString("https://example.org/feed/item/2")
	assert.NotEqual(t, a, c)
}

func TestIDFromHashedStringUsesCrockfordAlphabet(t *testing.T) {
	id := IDFromHashedString("some input")
	for _, r := range id {
		assert.Contains(t, "0123456789abcdefghjkmnpqrstvwxyz", string(r))
	}
}

func TestIDFromUUIDIsRandom(t *testing.T) {
	a := IDFromUUID()
	b := IDFromUUID()
	assert.NotEqual(t, a, b)
	assert.Len(t, a, 26)
}
