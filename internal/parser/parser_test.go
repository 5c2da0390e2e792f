package parser

import (
	"testing"

	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tickstamp/internal/errs"
	"tickstamp/internal/testutil"
	"tickstamp/internal/timestamp"
)

func TestClassify_Keyframe(t *testing.T) {
	c := NewClassifier(layers.LinkTypeEthernet, false, true)

	// High bits above the 31-bit counter must be masked off.
	clock := uint64(0xABCD)<<32 | 0x80000000 | 1000
	data := testutil.KeyframeFrame(t, 10, clock, 5_000_000_000, 7)

	f := c.Classify(data)
	require.Equal(t, KindKeyframe, f.Kind, "err: %v", f.Err)
	assert.Equal(t, timestamp.Keyframe{DeviceID: 7, ASICTicks: 1000, UTCNanos: 5_000_000_000}, f.Keyframe)
	assert.Equal(t, uint32(1000), f.Ticks)
	assert.Equal(t, testutil.DeviceIP.String(), f.SrcIP)
}

func TestClassify_KeyframeNeedsTTL64(t *testing.T) {
	c := NewClassifier(layers.LinkTypeEthernet, false, false)
	data := testutil.KeyframeFrame(t, testutil.Untagged, 1000, 5_000_000_000, 7)

	// TTL lives at offset 8 of the IPv4 header.
	data[14+8] = 63
	f := c.Classify(data)
	assert.Equal(t, KindData, f.Kind)
}

func TestClassify_ShortKeyframe(t *testing.T) {
	c := NewClassifier(layers.LinkTypeEthernet, false, false)
	data := testutil.KeyframeFrame(t, testutil.Untagged, 1000, 5_000_000_000, 7)

	// Shrink the IPv4 total length so the payload stops before the device id.
	data[14+2], data[14+3] = 0, 20+40
	f := c.Classify(data)
	assert.Equal(t, KindSkip, f.Kind)
	assert.ErrorIs(t, f.Err, errs.ErrMalformedFrame)
}

func TestClassify_DataFrame(t *testing.T) {
	tests := []struct {
		name        string
		vlan        int
		fcs         bool
		inspectVLAN bool
		wantVLAN    uint16
		wantTagged  bool
	}{
		{"untagged", testutil.Untagged, false, true, 0, false},
		{"tagged", 20, false, true, 20, true},
		{"tagged with fcs", 20, true, true, 20, true},
		{"tag ignored", 20, false, false, 0, false},
	}

	const ticks = 0x12345678 & 0x7FFFFFFF
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClassifier(layers.LinkTypeEthernet, tt.fcs, tt.inspectVLAN)
			raw := testutil.PackTicks(ticks)

			f := c.Classify(testutil.DataFrame(t, tt.vlan, raw, tt.fcs))
			require.Equal(t, KindData, f.Kind, "err: %v", f.Err)
			assert.Equal(t, raw, f.RawTicks)
			assert.Equal(t, uint32(ticks), f.Ticks)
			assert.Equal(t, tt.wantVLAN, f.VLAN)
			assert.Equal(t, tt.wantTagged, f.Tagged)
		})
	}
}

func TestClassify_FCSShiftsTickField(t *testing.T) {
	raw := testutil.PackTicks(4242)
	data := testutil.DataFrame(t, testutil.Untagged, raw, true)

	withFCS := NewClassifier(layers.LinkTypeEthernet, true, false).Classify(data)
	assert.Equal(t, uint32(4242), withFCS.Ticks)

	withoutFCS := NewClassifier(layers.LinkTypeEthernet, false, false).Classify(data)
	assert.Equal(t, timestamp.UnpackTicks(0xdeadbeef), withoutFCS.Ticks)
}

func TestClassify_Malformed(t *testing.T) {
	t.Run("too short for tick field", func(t *testing.T) {
		c := NewClassifier(layers.LinkTypeEthernet, true, false)
		f := c.Classify([]byte{1, 2, 3, 4, 5})
		assert.Equal(t, KindSkip, f.Kind)
		assert.ErrorIs(t, f.Err, errs.ErrMalformedFrame)
	})

	t.Run("truncated vlan header", func(t *testing.T) {
		c := NewClassifier(layers.LinkTypeEthernet, false, true)
		data := testutil.DataFrame(t, 10, 1, false)[:16]
		f := c.Classify(data)
		assert.Equal(t, KindSkip, f.Kind)
		assert.True(t, errs.IsSkip(f.Err))
	})

	t.Run("no ethernet header", func(t *testing.T) {
		c := NewClassifier(layers.LinkTypeEthernet, false, true)
		f := c.Classify([]byte{1, 2, 3, 4, 5, 6, 7, 8})
		assert.Equal(t, KindSkip, f.Kind)
		assert.ErrorIs(t, f.Err, errs.ErrMalformedFrame)
	})
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "data", KindData.String())
	assert.Equal(t, "keyframe", KindKeyframe.String())
	assert.Equal(t, "skip", KindSkip.String())
	assert.Equal(t, "kind(9)", Kind(9).String())
}
