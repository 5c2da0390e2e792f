package engine

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tickstamp/internal/models"
	"tickstamp/internal/registry"
	"tickstamp/internal/testutil"
)

type fakeClient struct {
	mu   sync.Mutex
	msgs []models.WSMessage
}

func (c *fakeClient) SendMessage(msg models.WSMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, msg)
	return nil
}

func (c *fakeClient) types() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.msgs))
	for _, m := range c.msgs {
		out = append(out, m.Type)
	}
	return out
}

func writePcap(t *testing.T, packets ...testutil.Packet) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "in.pcap")
	require.NoError(t, os.WriteFile(path, testutil.Pcap(t, packets...), 0o644))
	return path
}

func TestEngine_DecodeFileBroadcasts(t *testing.T) {
	e := New(Config{Registry: mustRegistry(t, map[string]uint16{"10": 1})})
	client := &fakeClient{}
	e.RegisterClient(client)

	path := writePcap(t,
		testutil.Packet{Time: t0, Data: testutil.KeyframeFrame(t, 10, 1000, 5_000_000_000, 1)},
		testutil.Packet{Time: t0.Add(time.Microsecond), Data: testutil.TicksFrame(t, 10, 1700)},
		testutil.Packet{Time: t0.Add(2 * time.Microsecond), Data: testutil.TicksFrame(t, 30, 1700)},
	)

	summary, err := e.DecodeFile(path, "upload.pcap")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Skipped)

	assert.Equal(t, []string{
		models.TypeDecodeStarted,
		models.TypeRecord,
		models.TypeRecord,
		models.TypeSkipped,
		models.TypeSummary,
	}, client.types())

	var started models.DecodeStarted
	require.NoError(t, json.Unmarshal(client.msgs[0].Payload, &started))
	assert.Equal(t, "upload.pcap", started.Source)
	assert.Equal(t, []uint16{1}, started.Config.Devices)
	assert.False(t, started.Config.Wildcard)

	var rec models.DecodedRecord
	require.NoError(t, json.Unmarshal(client.msgs[2].Payload, &rec))
	assert.Equal(t, uint64(5_000_002_000), rec.UTCNanos)

	var skipped models.SkippedPayload
	require.NoError(t, json.Unmarshal(client.msgs[3].Payload, &skipped))
	assert.Equal(t, 3, skipped.Number)
	assert.Equal(t, "vlan 30 is not configured", skipped.Reason)
}

func TestEngine_DecodeFileErrors(t *testing.T) {
	e := New(Config{Registry: mustRegistry(t, map[string]uint16{registry.Wildcard: 1})})
	client := &fakeClient{}
	e.RegisterClient(client)

	_, err := e.DecodeFile(filepath.Join(t.TempDir(), "missing.pcap"), "missing.pcap")
	require.Error(t, err)
	assert.Equal(t, []string{models.TypeError}, client.types())

	e.UnregisterClient(client)
	path := writePcap(t, testutil.Packet{Time: t0, Data: testutil.KeyframeFrame(t, testutil.Untagged, 1, 1, 2)})
	_, err = e.DecodeFile(path, "unknown-device.pcap")
	require.Error(t, err)
	assert.Len(t, client.types(), 1, "unregistered clients get nothing")
}

func TestEngine_Busy(t *testing.T) {
	e := New(Config{Registry: mustRegistry(t, map[string]uint16{registry.Wildcard: 1})})
	e.decoding = true

	_, err := e.DecodeFile("unused.pcap", "unused.pcap")
	assert.ErrorIs(t, err, ErrBusy)
}
