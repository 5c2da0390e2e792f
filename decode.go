package main

import (
	"io"
	"os"

	"go.uber.org/zap"

	"tickstamp/internal/capture"
	"tickstamp/internal/config"
	"tickstamp/internal/engine"
	"tickstamp/internal/errs"
	"tickstamp/internal/report"
)

// decode runs one capture file through the decoder, rendering the report
// and optionally writing the rewritten capture.
func decode(cfg *config.Config, input string, log *zap.Logger) error {
	reg, err := cfg.Registry()
	if err != nil {
		return err
	}

	reader, err := capture.Open(input)
	if err != nil {
		return err
	}
	defer reader.Close()

	opts := engine.Options{FCS: cfg.FCS, Logger: log}
	if cfg.Output != "" {
		w, err := capture.Create(cfg.Output, reader.LinkType(), reader.SnapLen(), cfg.Nanos)
		if err != nil {
			return err
		}
		defer w.Close()
		opts.Output = w
	}

	var out io.Writer = os.Stdout
	if cfg.Report.File != "" {
		f, err := os.Create(cfg.Report.File)
		if err != nil {
			return &errs.InputError{Path: cfg.Report.File, Op: "create", Err: err}
		}
		defer f.Close()
		out = f
	}

	table := report.NewWriter(out, report.Columns{
		PcapTimestamp: cfg.Report.PcapTimestamp,
		Deltas:        cfg.Report.Deltas,
		UTC:           cfg.Report.UTC,
		RawTicks:      cfg.Report.RawTicks,
		SrcIP:         cfg.Report.SrcIP,
	})

	log.Info("decoding",
		zap.String("input", input),
		zap.Uint16s("devices", reg.Devices()),
		zap.Bool("wildcard", reg.Wildcard()),
		zap.Bool("fcs", cfg.FCS),
	)
	dec := engine.NewDecoder(reg, reader.LinkType(), opts)
	_, runErr := dec.Run(reader, reportHandler{table})
	if err := table.Flush(); err != nil && runErr == nil {
		runErr = err
	}
	for _, d := range dec.Devices() {
		log.Debug("device state", zap.Stringer("device", &d))
	}
	return runErr
}

type reportHandler struct {
	*report.Writer
}

// HandleSkipped is a no-op: the decoder logs skipped frames.
func (reportHandler) HandleSkipped(*errs.SkippedFrame) {}

var _ engine.Handler = reportHandler{}
