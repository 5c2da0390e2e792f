package main

import (
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"tickstamp/internal/config"
	"tickstamp/internal/engine"
	"tickstamp/internal/handlers"
	"tickstamp/internal/metrics"
)

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), `Usage: %s [flags] <input.pcap>
       %s -http :8080 [flags]

Reconstructs UTC timestamps of hardware-timestamped frames from the
keyframes found in the capture.

Flags:
`, os.Args[0], os.Args[0])
	flag.PrintDefaults()
}

func main() {
	var (
		configPath = flag.String("config", "", "YAML configuration file")
		mapping    = flag.String("map", "", "VLAN to device mapping, e.g. 10=1,20=2 or *=1 for untagged traffic")
		fcs        = flag.Bool("fcs", false, "frames keep their trailing frame-check sequence")
		output     = flag.String("w", "", "write frames with decoded timestamps to this pcap file")
		nanos      = flag.Bool("nanos", false, "write the output pcap with nanosecond precision")
		pcapTS     = flag.Bool("pcap-ts", false, "show the capture timestamp column")
		deltas     = flag.Bool("deltas", false, "show delta columns")
		utc        = flag.Bool("utc", true, "show the decoded UTC column")
		rawTicks   = flag.Bool("raw-ticks", false, "show ticks as counter values instead of nanoseconds")
		srcIP      = flag.Bool("src-ip", false, "show the source IP column")
		reportFile = flag.String("o", "", "write the report to this file instead of stdout")
		httpAddr   = flag.String("http", "", "serve uploads and stream records over WebSocket on this address")
		debug      = flag.Bool("debug", false, "human-readable debug logging")
	)
	flag.Usage = usage
	flag.Parse()

	log, err := newLogger(*debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	cfg := config.Default()
	if *configPath != "" {
		if cfg, err = config.Load(*configPath); err != nil {
			log.Fatal("load config", zap.Error(err))
		}
	}

	// Flags given on the command line override the file.
	var mapErr error
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "map":
			cfg.Devices, mapErr = config.ParseMapping(*mapping)
		case "fcs":
			cfg.FCS = *fcs
		case "w":
			cfg.Output = *output
		case "nanos":
			cfg.Nanos = *nanos
		case "pcap-ts":
			cfg.Report.PcapTimestamp = *pcapTS
		case "deltas":
			cfg.Report.Deltas = *deltas
		case "utc":
			cfg.Report.UTC = *utc
		case "raw-ticks":
			cfg.Report.RawTicks = *rawTicks
		case "src-ip":
			cfg.Report.SrcIP = *srcIP
		case "o":
			cfg.Report.File = *reportFile
		case "http":
			cfg.HTTPAddr = *httpAddr
		}
	})
	if mapErr != nil {
		log.Fatal("parse -map", zap.Error(mapErr))
	}

	if cfg.HTTPAddr != "" {
		err = serve(cfg, log)
	} else {
		if flag.NArg() != 1 {
			flag.Usage()
			os.Exit(2)
		}
		err = decode(cfg, flag.Arg(0), log)
	}
	if err != nil {
		log.Error("tickstamp failed", zap.Error(err))
		log.Sync()
		os.Exit(1)
	}
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func serve(cfg *config.Config, log *zap.Logger) error {
	reg, err := cfg.Registry()
	if err != nil {
		return err
	}

	m := metrics.New()
	promReg := prometheus.NewRegistry()
	if err := m.Register(promReg); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	eng := engine.New(engine.Config{
		Registry: reg,
		FCS:      cfg.FCS,
		Logger:   log,
		Metrics:  m,
	})

	mux := http.NewServeMux()
	handlers.RegisterRoutes(mux, eng, promReg, log)

	log.Info("listening", zap.String("addr", cfg.HTTPAddr), zap.Uint16s("devices", reg.Devices()))
	if err := http.ListenAndServe(cfg.HTTPAddr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}
