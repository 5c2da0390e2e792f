package timestamp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWindow_Empty(t *testing.T) {
	var w Window

	_, ok := w.Latest()
	assert.False(t, ok)
	_, ok = w.Previous()
	assert.False(t, ok)
	assert.Equal(t, 0, w.Len())
}

func TestWindow_PushSlides(t *testing.T) {
	k1 := Keyframe{DeviceID: 1, ASICTicks: 10, UTCNanos: 100}
	k2 := Keyframe{DeviceID: 1, ASICTicks: 20, UTCNanos: 200}
	k3 := Keyframe{DeviceID: 1, ASICTicks: 30, UTCNanos: 300}

	var w Window
	w.Push(k1)
	latest, ok := w.Latest()
	assert.True(t, ok)
	assert.Equal(t, k1, latest)
	_, ok = w.Previous()
	assert.False(t, ok, "one keyframe has no previous")

	w.Push(k2)
	w.Push(k3)
	assert.Equal(t, 2, w.Len())

	latest, _ = w.Latest()
	prev, ok := w.Previous()
	assert.True(t, ok)
	assert.Equal(t, k3, latest)
	assert.Equal(t, k2, prev)
}
