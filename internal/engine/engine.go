package engine

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"tickstamp/internal/capture"
	"tickstamp/internal/errs"
	"tickstamp/internal/metrics"
	"tickstamp/internal/models"
	"tickstamp/internal/registry"
)

// ErrBusy is returned when a decode is requested while another one runs.
var ErrBusy = errors.New("decode already running")

const (
	paceEvery = 200
	paceDelay = 5 * time.Millisecond
)

// Client represents a connected WebSocket client that receives records.
type Client interface {
	SendMessage(msg models.WSMessage) error
}

// Config holds what every decode started by the engine shares.
type Config struct {
	Registry *registry.Registry
	FCS      bool
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
}

// Engine decodes uploaded captures and broadcasts the records to clients.
type Engine struct {
	mu       sync.Mutex
	clients  map[Client]bool
	decoding bool

	cfg Config
	log *zap.Logger
}

// New creates a new Engine.
func New(cfg Config) *Engine {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		clients: make(map[Client]bool),
		cfg:     cfg,
		log:     log,
	}
}

// RegisterClient adds a client to receive broadcasts.
func (e *Engine) RegisterClient(c Client) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.clients[c] = true
}

// UnregisterClient removes a client.
func (e *Engine) UnregisterClient(c Client) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.clients, c)
}

// DeviceConfig describes the registry and framing used for decodes.
func (e *Engine) DeviceConfig() models.DeviceConfig {
	return models.DeviceConfig{
		Devices:  e.cfg.Registry.Devices(),
		Wildcard: e.cfg.Registry.Wildcard(),
		FCS:      e.cfg.FCS,
	}
}

// DecodeFile decodes the capture at path and streams every record to all
// clients, pacing the stream so clients can keep up. name labels the run.
func (e *Engine) DecodeFile(path, name string) (models.Summary, error) {
	e.mu.Lock()
	if e.decoding {
		e.mu.Unlock()
		return models.Summary{}, ErrBusy
	}
	e.decoding = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.decoding = false
		e.mu.Unlock()
	}()

	reader, err := capture.Open(path)
	if err != nil {
		e.broadcastError(err)
		return models.Summary{}, err
	}
	defer reader.Close()

	e.broadcast(models.TypeDecodeStarted, models.DecodeStarted{
		Source: name,
		Config: e.DeviceConfig(),
	})

	dec := NewDecoder(e.cfg.Registry, reader.LinkType(), Options{
		FCS:     e.cfg.FCS,
		Logger:  e.log.With(zap.String("source", name)),
		Metrics: e.cfg.Metrics,
	})
	summary, err := dec.Run(reader, &broadcastHandler{e: e})
	if err != nil {
		e.broadcastError(err)
		return summary, err
	}
	e.broadcast(models.TypeSummary, summary)
	return summary, nil
}

type broadcastHandler struct {
	e     *Engine
	batch int
}

func (h *broadcastHandler) HandleRecord(rec models.DecodedRecord) error {
	h.e.broadcast(models.TypeRecord, rec)

	h.batch++
	if h.batch >= paceEvery {
		h.batch = 0
		time.Sleep(paceDelay)
	}
	return nil
}

func (h *broadcastHandler) HandleSkipped(skip *errs.SkippedFrame) {
	h.e.broadcast(models.TypeSkipped, models.SkippedPayload{
		Number: skip.Frame,
		Reason: skip.Reason.Error(),
	})
}

func (e *Engine) broadcastError(err error) {
	e.broadcast(models.TypeError, models.ErrorPayload{Message: err.Error()})
}

func (e *Engine) broadcast(typ string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		e.log.Error("marshal broadcast", zap.String("type", typ), zap.Error(err))
		return
	}
	msg := models.WSMessage{Type: typ, Payload: payload}

	e.mu.Lock()
	clients := make([]Client, 0, len(e.clients))
	for c := range e.clients {
		clients = append(clients, c)
	}
	e.mu.Unlock()

	for _, c := range clients {
		if err := c.SendMessage(msg); err != nil {
			e.log.Debug("send to client", zap.Error(err))
		}
	}
}
