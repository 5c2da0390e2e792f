package engine

import (
	"errors"
	"io"
	"time"

	"github.com/google/gopacket/layers"
	"go.uber.org/zap"

	"tickstamp/internal/capture"
	"tickstamp/internal/errs"
	"tickstamp/internal/flow"
	"tickstamp/internal/metrics"
	"tickstamp/internal/models"
	"tickstamp/internal/parser"
	"tickstamp/internal/registry"
	"tickstamp/internal/timestamp"
)

// Source supplies frames in capture order and io.EOF at the end.
type Source interface {
	Next() (capture.Frame, error)
}

// Sink receives every frame again with its substituted timestamp.
type Sink interface {
	WriteFrame(f capture.Frame, ts time.Time) error
}

// Handler consumes the outcome of each frame.
type Handler interface {
	HandleRecord(rec models.DecodedRecord) error
	HandleSkipped(skip *errs.SkippedFrame)
}

// Options configure a Decoder.
type Options struct {
	// FCS is set when frames keep their trailing frame-check sequence.
	FCS     bool
	Output  Sink
	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// Decoder timestamps the frames of one capture. It owns all per-device
// state and must see frames strictly in capture order: a keyframe only
// anchors frames read after it.
type Decoder struct {
	reg        *registry.Registry
	classifier *parser.Classifier
	tracker    *flow.Tracker
	out        Sink
	log        *zap.Logger
	metrics    *metrics.Metrics

	warned  map[string]struct{}
	summary models.Summary
}

// NewDecoder creates a decoder for frames of the given link type.
func NewDecoder(reg *registry.Registry, linkType layers.LinkType, opts Options) *Decoder {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Decoder{
		reg:        reg,
		classifier: parser.NewClassifier(linkType, opts.FCS, !reg.Wildcard()),
		tracker:    flow.NewTracker(),
		out:        opts.Output,
		log:        log,
		metrics:    opts.Metrics,
		warned:     make(map[string]struct{}),
	}
}

// Run processes every frame of src. Skipped frames are reported to h and
// do not stop the run; any other error aborts it.
func (d *Decoder) Run(src Source, h Handler) (models.Summary, error) {
	for {
		f, err := src.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return d.Summary(), d.fail(err)
		}

		rec, err := d.Process(f)
		var ts time.Time
		switch {
		case err == nil:
			if err := h.HandleRecord(rec); err != nil {
				return d.Summary(), d.fail(err)
			}
			ts = capture.UTCTime(rec.UTCNanos)
		case errs.IsSkip(err):
			var skip *errs.SkippedFrame
			if !errors.As(err, &skip) {
				skip = &errs.SkippedFrame{Frame: f.Number, Reason: err}
			}
			h.HandleSkipped(skip)
			ts = f.Info.Timestamp
		default:
			return d.Summary(), d.fail(err)
		}

		if d.out != nil {
			if err := d.out.WriteFrame(f, ts); err != nil {
				return d.Summary(), d.fail(err)
			}
		}
	}

	s := d.Summary()
	d.metrics.Run(nil)
	d.log.Info("decode finished",
		zap.Int("frames", s.Frames),
		zap.Int("keyframes", s.Keyframes),
		zap.Int("decoded", s.Decoded),
		zap.Int("undecodable", s.Undecodable),
		zap.Int("skipped", s.Skipped),
		zap.Int("rollovers", s.Rollovers),
	)
	return s, nil
}

func (d *Decoder) fail(err error) error {
	d.metrics.Run(err)
	d.log.Error("decode aborted", zap.Stringer("class", errs.Classify(err)), zap.Error(err))
	return err
}

// Process timestamps a single frame. A skipped frame returns a
// *errs.SkippedFrame and leaves all device state untouched.
func (d *Decoder) Process(f capture.Frame) (models.DecodedRecord, error) {
	d.summary.Frames++
	cls := d.classifier.Classify(f.Data)

	switch cls.Kind {
	case parser.KindKeyframe:
		kf := cls.Keyframe
		if !d.reg.Known(kf.DeviceID) {
			return models.DecodedRecord{}, &errs.UnknownDeviceError{DeviceID: kf.DeviceID, Frame: f.Number}
		}
		dev := d.tracker.Device(kf.DeviceID)
		dev.AddKeyframe(kf)
		d.summary.Keyframes++
		d.metrics.Frame("keyframe")

		rec := d.record(f, cls, dev, kf.UTCNanos)
		rec.IsKeyframe = true
		return rec, nil

	case parser.KindData:
		id, err := d.reg.Resolve(cls.VLAN, cls.Tagged)
		if err != nil {
			d.warnOnce(err)
			return models.DecodedRecord{}, d.skip(f, err)
		}
		dev := d.tracker.Device(id)
		utc := timestamp.Decode(cls.Ticks, dev.Window)
		if utc == 0 {
			d.summary.Undecodable++
		} else {
			d.summary.Decoded++
		}
		d.metrics.Frame("data")
		d.metrics.Decoded(id, utc != 0)
		return d.record(f, cls, dev, utc), nil

	default:
		return models.DecodedRecord{}, d.skip(f, cls.Err)
	}
}

func (d *Decoder) record(f capture.Frame, cls parser.Frame, dev *flow.DeviceState, utc uint64) models.DecodedRecord {
	deltas := dev.Track(cls.Ticks, f.Info.Timestamp, utc)
	if deltas.Rollover {
		d.summary.Rollovers++
		d.metrics.Rollover(dev.ID)
	}
	return models.DecodedRecord{
		Number:        f.Number,
		PcapTimestamp: f.Info.Timestamp,
		PcapDeltaNs:   deltas.PcapDeltaNs,
		HWTicks:       cls.Ticks,
		HWDeltaTicks:  deltas.HWDeltaTicks,
		UTCNanos:      utc,
		UTCDeltaNs:    deltas.UTCDeltaNanos,
		Rollover:      deltas.Rollover,
		DeviceID:      dev.ID,
		VLAN:          cls.VLAN,
		Tagged:        cls.Tagged,
		SrcIP:         cls.SrcIP,
	}
}

func (d *Decoder) skip(f capture.Frame, reason error) error {
	d.summary.Skipped++
	d.metrics.Frame("skipped")
	d.log.Debug("frame skipped", zap.Int("frame", f.Number), zap.Error(reason))
	return &errs.SkippedFrame{Frame: f.Number, Reason: reason}
}

// warnOnce surfaces each distinct unconfigured VLAN once per run.
func (d *Decoder) warnOnce(err error) {
	key := err.Error()
	if _, ok := d.warned[key]; ok {
		return
	}
	d.warned[key] = struct{}{}
	d.log.Warn("skipping frames without a device mapping", zap.Error(err))
}

// Summary returns the counts so far.
func (d *Decoder) Summary() models.Summary {
	s := d.summary
	s.Devices = len(d.tracker.Devices())
	return s
}

// Devices returns a snapshot of the per-device state.
func (d *Decoder) Devices() []flow.DeviceState {
	return d.tracker.Devices()
}
