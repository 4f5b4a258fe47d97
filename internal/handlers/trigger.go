package handlers

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/PratikDhanave/capi-relay/internal/clientinfo"
	"github.com/PratikDhanave/capi-relay/internal/config"
	"github.com/PratikDhanave/capi-relay/internal/meta"
	"github.com/PratikDhanave/capi-relay/internal/models"
)

const (
	errConfig        = "Server configuration error."
	errMissingFields = "Missing eventName or eventUrl"
	errInvalidJSON   = "invalid JSON payload"
)

// EventSender delivers a payload to the Conversions API. *meta.Client implements it.
type EventSender interface {
	SendEvents(ctx context.Context, payload models.EventsPayload) (json.RawMessage, error)
}

// Relay turns browser event notifications into server events.
// It holds no mutable state and is safe for concurrent use.
type Relay struct {
	cfg        config.Config
	sender     EventSender
	now        func() time.Time
	newEventID func() (string, error)
	logger     *slog.Logger
}

// Option configures a Relay.
type Option func(*Relay)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Relay) { r.now = now }
}

// WithEventIDGenerator overrides NewEventID.
func WithEventIDGenerator(fn func() (string, error)) Option {
	return func(r *Relay) { r.newEventID = fn }
}

// WithLogger overrides slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(r *Relay) { r.logger = l }
}

// NewRelay creates a Relay reading credentials from cfg and sending through sender.
func NewRelay(cfg config.Config, sender EventSender, opts ...Option) *Relay {
	r := &Relay{
		cfg:        cfg,
		sender:     sender,
		now:        time.Now,
		newEventID: NewEventID,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewEventID returns "evt_" followed by the 128 bits of a random UUID in hex.
// Meta uses it to deduplicate against the browser pixel's copy of the event.
func NewEventID() (string, error) {
	u, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return "evt_" + hex.EncodeToString(u[:]), nil
}

// RegisterTriggerRoutes registers the relay endpoint.
//
// POST /api/trigger-capi
// - 200 {success:true, meta_response} when Meta accepted the event
// - 400 when eventName or eventUrl is missing
// - 500 on missing credentials or when the Meta call failed (never retried)
func RegisterTriggerRoutes(r gin.IRoutes, relay *Relay) {
	r.POST("/api/trigger-capi", relay.HandleEventTrigger)
}

// HandleEventTrigger validates, enriches and forwards one event.
func (h *Relay) HandleEventTrigger(c *gin.Context) {
	// Credentials are checked before the body so a misconfigured server
	// answers the same way for every request.
	if err := h.cfg.Validate(); err != nil {
		h.logger.Error("capi relay misconfigured", "error", err)
		c.JSON(http.StatusInternalServerError, models.TriggerResponse{Error: errConfig})
		return
	}

	var req models.EventTriggerRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		h.logger.Warn("capi trigger rejected", "reason", "invalid json", "error", err)
		c.JSON(http.StatusBadRequest, models.TriggerResponse{Error: errInvalidJSON})
		return
	}
	if !req.Valid() {
		h.logger.Warn("capi trigger rejected", "reason", "missing eventName or eventUrl")
		c.JSON(http.StatusBadRequest, models.TriggerResponse{Error: errMissingFields})
		return
	}

	info := clientinfo.Get(c)
	if info.IP == "" || info.UserAgent == "" {
		// Meta matches less well without these, but the event is still useful.
		h.logger.Warn("could not extract client ip or user agent",
			"has_ip", info.IP != "",
			"has_user_agent", info.UserAgent != "",
		)
	}

	eventID, err := h.newEventID()
	if err != nil {
		h.logger.Error("generate event id", "error", err)
		c.JSON(http.StatusInternalServerError, models.TriggerResponse{Error: "could not generate event id"})
		return
	}

	payload := BuildPayload(req, info, h.now(), eventID, h.cfg.TestCode)

	// The browser often navigates away right after firing the trigger; the
	// call must finish anyway. The sender bounds it with its own timeout.
	ctx := context.WithoutCancel(c.Request.Context())

	start := time.Now()
	metaResp, err := h.sender.SendEvents(ctx, payload)
	if err != nil {
		h.logUpstreamError(err, eventID, req.EventName)
		c.JSON(http.StatusInternalServerError, models.TriggerResponse{Error: upstreamMessage(err)})
		return
	}

	device := info.Device()
	h.logger.Info("capi event sent",
		"event_id", eventID,
		"event_name", req.EventName,
		"test_mode", h.cfg.TestCode != "",
		"browser", device.Browser,
		"os", device.OS,
		"device", device.Type,
		"bot", device.Bot,
		"duration_ms", time.Since(start).Milliseconds(),
		"meta_response", string(metaResp),
	)

	c.JSON(http.StatusOK, models.TriggerResponse{Success: true, MetaResponse: metaResp})
}

// BuildPayload assembles the single-event Conversions API body.
func BuildPayload(req models.EventTriggerRequest, info clientinfo.Info, now time.Time, eventID, testCode string) models.EventsPayload {
	return models.EventsPayload{
		Data: []models.ServerEvent{{
			EventName:      req.EventName,
			EventTime:      now.Unix(),
			EventSourceURL: req.EventURL,
			EventID:        eventID,
			ActionSource:   models.ActionSourceWebsite,
			UserData: models.UserData{
				ClientIPAddress: info.IP,
				ClientUserAgent: info.UserAgent,
			},
		}},
		TestEventCode: testCode,
	}
}

// upstreamMessage prefers the provider's own error message.
func upstreamMessage(err error) string {
	var apiErr *meta.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Error()
	}
	return err.Error()
}

func (h *Relay) logUpstreamError(err error, eventID, eventName string) {
	attrs := []any{"event_id", eventID, "event_name", eventName, "error", err}

	var apiErr *meta.APIError
	if errors.As(err, &apiErr) {
		attrs = append(attrs,
			"status", apiErr.StatusCode,
			"meta_error_type", apiErr.Type,
			"meta_error_code", apiErr.Code,
			"fbtrace_id", apiErr.FBTraceID,
		)
	}

	h.logger.Error("capi event failed", attrs...)
}
