package capture

import (
	"io"
	"os"
	"time"

	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"tickstamp/internal/errs"
	"tickstamp/internal/timestamp"
)

// Writer writes frames with substituted timestamps to a pcap file.
// Timestamps are truncated to microseconds unless nanos is set.
type Writer struct {
	w      *pcapgo.Writer
	closer io.Closer
	path   string
}

// Create creates path and writes the pcap file header.
func Create(path string, linkType layers.LinkType, snapLen uint32, nanos bool) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, &errs.InputError{Path: path, Op: "create", Err: err}
	}
	w, err := NewWriter(f, linkType, snapLen, nanos)
	if err != nil {
		f.Close()
		return nil, err
	}
	w.closer = f
	w.path = path
	return w, nil
}

// NewWriter writes a pcap file header to w.
func NewWriter(w io.Writer, linkType layers.LinkType, snapLen uint32, nanos bool) (*Writer, error) {
	pw := pcapgo.NewWriter(w)
	if nanos {
		pw = pcapgo.NewWriterNanos(w)
	}
	if snapLen == 0 {
		snapLen = DefaultSnapLen
	}
	if err := pw.WriteFileHeader(snapLen, linkType); err != nil {
		return nil, &errs.InputError{Op: "write pcap header", Err: err}
	}
	return &Writer{w: pw}, nil
}

// UTCTime converts decoded UTC nanoseconds to the timestamp written for a
// frame. Undecodable frames (0) land on the Unix epoch.
func UTCTime(utcNanos uint64) time.Time {
	return timestamp.Time(utcNanos)
}

// WriteFrame writes f unchanged except for its timestamp.
func (w *Writer) WriteFrame(f Frame, ts time.Time) error {
	ci := f.Info
	ci.Timestamp = ts
	if err := w.w.WritePacket(ci, f.Data); err != nil {
		return &errs.InputError{Path: w.path, Op: "write frame", Err: err}
	}
	return nil
}

// Close closes the underlying file, if any.
func (w *Writer) Close() error {
	if w.closer != nil {
		return w.closer.Close()
	}
	return nil
}
