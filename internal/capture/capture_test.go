package capture

import (
	"bytes"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tickstamp/internal/errs"
	"tickstamp/internal/testutil"
)

func readAll(t *testing.T, r *Reader) []Frame {
	t.Helper()
	var out []Frame
	for {
		f, err := r.Next()
		if err == io.EOF {
			return out
		}
		require.NoError(t, err)
		out = append(out, f)
	}
}

func TestReader_Frames(t *testing.T) {
	t0 := time.Unix(1_700_000_000, 123_456_789)
	a := testutil.TicksFrame(t, 10, 1000)
	b := testutil.TicksFrame(t, 20, 2000)
	file := testutil.Pcap(t,
		testutil.Packet{Time: t0, Data: a},
		testutil.Packet{Time: t0.Add(time.Second), Data: b},
	)

	r, err := NewReader(bytes.NewReader(file))
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, layers.LinkTypeEthernet, r.LinkType())
	assert.Equal(t, uint32(65535), r.SnapLen())

	frames := readAll(t, r)
	require.Len(t, frames, 2)
	assert.Equal(t, 1, frames[0].Number)
	assert.Equal(t, 2, frames[1].Number)
	assert.Equal(t, a, frames[0].Data)
	assert.True(t, frames[0].Info.Timestamp.Equal(t0))
	assert.True(t, frames[1].Info.Timestamp.Equal(t0.Add(time.Second)))
}

func TestReader_Errors(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.pcap"))
	var inErr *errs.InputError
	require.True(t, errors.As(err, &inErr))
	assert.Equal(t, "open", inErr.Op)
	assert.True(t, errs.IsFatal(err))

	_, err = NewReader(bytes.NewReader(nil))
	require.True(t, errors.As(err, &inErr))

	_, err = NewReader(bytes.NewReader([]byte("not a capture file at all")))
	require.True(t, errors.As(err, &inErr))
}

func TestWriter_SubstitutesTimestamp(t *testing.T) {
	tests := []struct {
		name  string
		nanos bool
		utc   uint64
		want  time.Time
	}{
		{"microsecond truncation", false, 5_000_002_789, time.Unix(5, 2_000)},
		{"nanosecond precision", true, 5_000_002_789, time.Unix(5, 2_789)},
		{"undecodable", false, 0, time.Unix(0, 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := testutil.TicksFrame(t, testutil.Untagged, 1700)
			in := Frame{Number: 1, Data: data}
			in.Info.CaptureLength = len(data)
			in.Info.Length = len(data)
			in.Info.Timestamp = time.Unix(1_700_000_000, 0)

			var buf bytes.Buffer
			w, err := NewWriter(&buf, layers.LinkTypeEthernet, 0, tt.nanos)
			require.NoError(t, err)
			require.NoError(t, w.WriteFrame(in, UTCTime(tt.utc)))
			require.NoError(t, w.Close())

			r, err := NewReader(&buf)
			require.NoError(t, err)
			frames := readAll(t, r)
			require.Len(t, frames, 1)
			assert.Equal(t, data, frames[0].Data)
			assert.True(t, frames[0].Info.Timestamp.Equal(tt.want), "got %v", frames[0].Info.Timestamp)
		})
	}
}

func TestCreate_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.pcap")
	w, err := Create(path, layers.LinkTypeEthernet, 1500, true)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, uint32(1500), r.SnapLen())
	assert.Empty(t, readAll(t, r))
}
