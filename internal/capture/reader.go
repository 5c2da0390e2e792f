package capture

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"tickstamp/internal/errs"
)

// DefaultSnapLen is used when the input does not report a snap length.
const DefaultSnapLen = 65535

var ngMagic = []byte{0x0a, 0x0d, 0x0d, 0x0a}

// Frame is one captured frame in file order. Number starts at 1.
type Frame struct {
	Number int
	Info   gopacket.CaptureInfo
	Data   []byte
}

type packetReader interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
	LinkType() layers.LinkType
}

// Reader reads frames from a pcap or pcapng file.
type Reader struct {
	src     packetReader
	closer  io.Closer
	path    string
	snapLen uint32
	count   int
}

// Open opens a capture file for reading.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &errs.InputError{Path: path, Op: "open", Err: err}
	}
	r, err := NewReader(f)
	if err != nil {
		f.Close()
		var inErr *errs.InputError
		if errors.As(err, &inErr) {
			inErr.Path = path
		}
		return nil, err
	}
	r.closer = f
	r.path = path
	return r, nil
}

// NewReader reads a capture from r, detecting pcap or pcapng framing.
func NewReader(r io.Reader) (*Reader, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(len(ngMagic))
	if err != nil {
		return nil, &errs.InputError{Op: "read header", Err: err}
	}

	if bytes.Equal(magic, ngMagic) {
		ng, err := pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
		if err != nil {
			return nil, &errs.InputError{Op: "read pcapng header", Err: err}
		}
		return &Reader{src: ng, snapLen: DefaultSnapLen}, nil
	}

	pr, err := pcapgo.NewReader(br)
	if err != nil {
		return nil, &errs.InputError{Op: "read pcap header", Err: err}
	}
	return &Reader{src: pr, snapLen: pr.Snaplen()}, nil
}

// Next returns the next frame, or io.EOF at the end of the capture.
func (r *Reader) Next() (Frame, error) {
	data, ci, err := r.src.ReadPacketData()
	if err == io.EOF {
		return Frame{}, io.EOF
	}
	if err != nil {
		return Frame{}, &errs.InputError{Path: r.path, Op: fmt.Sprintf("read frame %d", r.count+1), Err: err}
	}
	r.count++
	return Frame{Number: r.count, Info: ci, Data: data}, nil
}

// LinkType returns the link layer type of the capture.
func (r *Reader) LinkType() layers.LinkType {
	return r.src.LinkType()
}

// SnapLen returns the capture's snapshot length.
func (r *Reader) SnapLen() uint32 {
	return r.snapLen
}

// Close releases the underlying file, if any.
func (r *Reader) Close() error {
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}
