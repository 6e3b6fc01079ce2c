package durable

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPointerGuidIsStablePerID(t *testing.T) {
	a := (&Subscriber{id: "core.index"}).pointerGuid()
	b := (&Subscriber{id: "core.index"}).pointerGuid()
	c := (&Subscriber{id: "core.jobs"}).pointerGuid()

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Equal(t, "durablepointer", a.Type())
}
