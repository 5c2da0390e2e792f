// Package report renders decoded records as an aligned text table.
package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"tickstamp/internal/models"
	"tickstamp/internal/timestamp"
)

const timeLayout = "2006-01-02 15:04:05.000000000"

// Columns selects the optional columns of the table.
type Columns struct {
	PcapTimestamp bool // capture timestamp stored in the input file
	Deltas        bool // per-device deltas next to each value
	UTC           bool // reconstructed UTC time
	RawTicks      bool // ticks as counter values instead of nanoseconds
	SrcIP         bool
}

// Writer streams records as table rows. Rows are aligned on Flush.
type Writer struct {
	tw     *tabwriter.Writer
	cols   Columns
	header bool
}

// NewWriter creates a table writer on w.
func NewWriter(w io.Writer, cols Columns) *Writer {
	return &Writer{
		tw:   tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight),
		cols: cols,
	}
}

// Render writes all records and flushes.
func Render(w io.Writer, records []models.DecodedRecord, cols Columns) error {
	rw := NewWriter(w, cols)
	for _, rec := range records {
		if err := rw.Write(rec); err != nil {
			return err
		}
	}
	return rw.Flush()
}

func (w *Writer) headers() []string {
	h := []string{"No."}
	if w.cols.PcapTimestamp {
		h = append(h, "Pcap time")
	}
	if w.cols.Deltas {
		h = append(h, "Pcap delta(ns)")
	}
	h = append(h, "Device", "VLAN")
	if w.cols.RawTicks {
		h = append(h, "Ticks")
	} else {
		h = append(h, "Ticks(ns)")
	}
	if w.cols.Deltas {
		h = append(h, "Tick delta")
	}
	if w.cols.UTC {
		h = append(h, "UTC")
	}
	if w.cols.Deltas {
		h = append(h, "UTC delta(ns)")
	}
	h = append(h, "Flags")
	if w.cols.SrcIP {
		h = append(h, "Source")
	}
	return h
}

// Write appends one row, writing the header first.
func (w *Writer) Write(rec models.DecodedRecord) error {
	if !w.header {
		w.header = true
		if err := w.row(w.headers()); err != nil {
			return err
		}
	}

	r := []string{fmt.Sprint(rec.Number)}
	if w.cols.PcapTimestamp {
		r = append(r, rec.PcapTimestamp.UTC().Format(timeLayout))
	}
	if w.cols.Deltas {
		r = append(r, fmt.Sprint(rec.PcapDeltaNs))
	}
	vlan := "-"
	if rec.Tagged {
		vlan = fmt.Sprint(rec.VLAN)
	}
	r = append(r, fmt.Sprint(rec.DeviceID), vlan, w.ticks(rec.HWTicks))
	if w.cols.Deltas {
		r = append(r, w.ticks(rec.HWDeltaTicks))
	}
	if w.cols.UTC {
		r = append(r, utc(rec.UTCNanos))
	}
	if w.cols.Deltas {
		r = append(r, fmt.Sprint(rec.UTCDeltaNs))
	}
	r = append(r, flags(rec))
	if w.cols.SrcIP {
		r = append(r, rec.SrcIP)
	}
	return w.row(r)
}

// HandleRecord lets a Writer consume records straight from a decoder.
func (w *Writer) HandleRecord(rec models.DecodedRecord) error {
	return w.Write(rec)
}

// Flush aligns and writes the buffered rows.
func (w *Writer) Flush() error {
	return w.tw.Flush()
}

func (w *Writer) row(cells []string) error {
	_, err := io.WriteString(w.tw, strings.Join(cells, "\t")+"\t\n")
	return err
}

func (w *Writer) ticks(v uint32) string {
	if w.cols.RawTicks {
		return fmt.Sprint(v)
	}
	return fmt.Sprintf("%.1f", timestamp.TicksToNanos(v))
}

func utc(nanos uint64) string {
	if nanos == 0 {
		return "-"
	}
	return timestamp.Time(nanos).Format(timeLayout)
}

func flags(rec models.DecodedRecord) string {
	var f string
	if rec.IsKeyframe {
		f += "K"
	}
	if rec.Rollover {
		f += "R"
	}
	if !rec.Decoded() {
		f += "U"
	}
	if f == "" {
		return "-"
	}
	return f
}
