package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"tickstamp/internal/engine"
	"tickstamp/internal/errs"
)

const maxUploadSize = 100 << 20 // 100 MB

// RegisterRoutes sets up all HTTP routes on the given mux.
func RegisterRoutes(mux *http.ServeMux, eng *engine.Engine, gatherer prometheus.Gatherer, log *zap.Logger) {
	if log == nil {
		log = zap.NewNop()
	}

	// WebSocket endpoint
	mux.HandleFunc("/ws", HandleWebSocket(eng, log))

	// PCAP file upload
	mux.HandleFunc("/api/upload", handleUpload(eng, log))

	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
}

func handleUpload(eng *engine.Engine, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST only", http.StatusMethodNotAllowed)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
		if err := r.ParseMultipartForm(maxUploadSize); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				http.Error(w, "File too large (max 100MB)", http.StatusRequestEntityTooLarge)
				return
			}
			http.Error(w, "Invalid upload: "+err.Error(), http.StatusBadRequest)
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			http.Error(w, "Missing file", http.StatusBadRequest)
			return
		}
		defer file.Close()

		// Decoding reads from a file path, so spool the upload first.
		tmpFile, err := os.CreateTemp("", "tickstamp-*.pcap")
		if err != nil {
			log.Error("create temp file", zap.Error(err))
			http.Error(w, "Failed to create temp file", http.StatusInternalServerError)
			return
		}
		tmpPath := tmpFile.Name()
		defer os.Remove(tmpPath)

		if _, err := io.Copy(tmpFile, file); err != nil {
			tmpFile.Close()
			http.Error(w, "Failed to save file", http.StatusInternalServerError)
			return
		}
		tmpFile.Close()

		name := filepath.Base(header.Filename)
		summary, err := eng.DecodeFile(tmpPath, name)
		switch {
		case errors.Is(err, engine.ErrBusy):
			http.Error(w, err.Error(), http.StatusConflict)
			return
		case err != nil:
			log.Warn("decode upload", zap.String("file", name), zap.Error(err))
			http.Error(w, "Failed to decode pcap: "+err.Error(), statusFor(err))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(summary); err != nil {
			log.Debug("write upload response", zap.Error(err))
		}
	}
}

func statusFor(err error) int {
	var (
		input   *errs.InputError
		unknown *errs.UnknownDeviceError
	)
	switch {
	case errors.As(err, &input):
		return http.StatusBadRequest
	case errors.As(err, &unknown):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
