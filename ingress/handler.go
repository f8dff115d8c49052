// Package ingress accepts externally signed publish requests over HTTP
package ingress

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/joomcode/errorx"
	"github.com/relaycast/relaycast-go/common"
	"github.com/relaycast/relaycast-go/dispatch"
	"github.com/relaycast/relaycast-go/guard"
	"github.com/relaycast/relaycast-go/metrics"
	"github.com/relaycast/relaycast-go/store"
)

const (
	PublicKeyHeader = "X-Ds-Public-Key"
	SignatureHeader = "X-Ds-Req-Signature"

	metricsRequests = "ingress_requests_total"
	metricsFailures = "ingress_failures_total"
	metricsAborted  = "ingress_aborted_total"
)

// Request is the signed event payload
type Request struct {
	Event     string          `json:"event"`
	RoomID    string          `json:"roomId"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
	// Global events reach every socket joined to the room, not only the event subscribers
	Global bool `json:"global,omitempty"`
}

// Response acknowledges a dispatched event
type Response struct {
	RequestID string `json:"requestId"`
	Timestamp int64  `json:"timestamp"`
}

type Handler struct {
	config      *Config
	credentials store.CredentialPool
	dispatcher  *dispatch.Dispatcher
	history     store.HistoryStore

	now func() time.Time

	metrics metrics.Instrumenter
	log     *log.Entry
}

var _ http.Handler = (*Handler)(nil)

type Option func(*Handler)

func WithInstrumenter(i metrics.Instrumenter) Option {
	return func(h *Handler) {
		h.metrics = i
	}
}

// WithClock overrides the clock used to verify timestamps
func WithClock(now func() time.Time) Option {
	return func(h *Handler) {
		h.now = now
	}
}

func NewHandler(c *Config, credentials store.CredentialPool, d *dispatch.Dispatcher, history store.HistoryStore, opts ...Option) *Handler {
	h := &Handler{
		config:      c,
		credentials: credentials,
		dispatcher:  d,
		history:     history,
		now:         time.Now,
		metrics:     metrics.NoopMetrics{},
		log:         log.WithField("context", "ingress"),
	}

	for _, opt := range opts {
		opt(h)
	}

	h.metrics.RegisterCounter(metricsRequests, "The total number of signed publish requests")
	h.metrics.RegisterCounter(metricsFailures, "The total number of rejected or failed signed publish requests")
	h.metrics.RegisterCounter(metricsAborted, "The total number of signed publish requests aborted by the peer")

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.metrics.CounterIncrement(metricsRequests)

	requestID, err := dispatch.NewRequestID()

	if err != nil {
		h.fail(w, r, err, map[string]string{})
		return
	}

	ctxLog := h.log.WithField("request_id", requestID)

	ctxLog.Debug("Publishing event")

	publicKey := r.Header.Get(PublicKeyHeader)
	signature := r.Header.Get(SignatureHeader)

	if publicKey == "" || signature == "" {
		h.fail(w, r, common.ErrValidation.New("Public key and signature headers are required"), map[string]string{"requestId": requestID})
		return
	}

	if h.config.MaxBodySize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.config.MaxBodySize)
	}

	// Work that has started completes even if the peer goes away; only the response is suppressed
	ctx := context.WithoutCancel(r.Context())

	res, roomID, err := h.handle(ctx, r, requestID, publicKey, signature)

	if err != nil {
		ctxLog.Errorf("Failed to publish event: %v", err)

		data := map[string]string{"requestId": requestID}

		if roomID != "" {
			data["roomId"] = roomID
		}

		h.fail(w, r, err, data)
		return
	}

	if h.aborted(r) {
		ctxLog.Debug("Request aborted, response suppressed")
		return
	}

	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handle(ctx context.Context, r *http.Request, requestID string, publicKey string, signature string) (*Response, string, error) {
	body, err := io.ReadAll(r.Body)

	if err != nil {
		var tooLarge *http.MaxBytesError

		if errors.As(err, &tooLarge) {
			return nil, "", common.ErrValidation.New("request body is too large")
		}

		return nil, "", common.ErrValidation.Wrap(err, "failed to read request body")
	}

	tenantID, keyID, ok := strings.Cut(publicKey, ".")

	if !ok || tenantID == "" || keyID == "" {
		return nil, "", common.ErrAuthentication.New("malformed public key")
	}

	conn, err := h.credentials.Acquire(ctx)

	if err != nil {
		return nil, "", errorx.Decorate(err, "failed to acquire credentials connection")
	}

	defer conn.Release()

	secret, err := conn.SecretKey(ctx, tenantID, keyID)

	if err != nil {
		if errorx.IsOfType(err, common.ErrNotFound) {
			return nil, "", common.ErrAuthentication.Wrap(err, "unknown key")
		}

		return nil, "", err
	}

	if !VerifySignature(secret, body, signature) {
		return nil, "", common.ErrAuthentication.New("signature mismatch")
	}

	var req Request

	if err := json.Unmarshal(body, &req); err != nil {
		return nil, "", common.ErrValidation.Wrap(err, "malformed request body")
	}

	if req.RoomID == "" || req.Event == "" {
		return nil, req.RoomID, common.ErrValidation.New("event and roomId are required")
	}

	if common.IsReservedEvent(req.Event) {
		return nil, req.RoomID, common.ErrValidation.New("invalid event name: %q", req.Event)
	}

	tolerance := time.Duration(h.config.TimestampTolerance) * time.Second

	if err := VerifyTimestamp(req.Timestamp, h.now(), tolerance); err != nil {
		return nil, req.RoomID, err
	}

	permissions, err := conn.Permissions(ctx, tenantID, keyID)

	if err != nil {
		return nil, req.RoomID, errorx.Decorate(err, "failed to load permissions")
	}

	if err := guard.CheckPermission(req.RoomID, common.ActionPublish, permissions); err != nil {
		return nil, req.RoomID, err
	}

	nspRoomID := common.NspRoomID(tenantID, req.RoomID)
	session := &common.ReducedSession{TenantID: tenantID, KeyID: keyID}

	handle := h.dispatcher.To(nspRoomID).WithRequestID(requestID)

	if req.Global {
		handle = handle.Global()
	}

	envelope, err := handle.Dispatch(
		ctx,
		req.Event,
		req.Data,
		session,
		common.NewLatencyLog(time.UnixMilli(req.Timestamp)),
	)

	if err != nil {
		return nil, req.RoomID, err
	}

	if err := h.history.AppendMessage(ctx, nspRoomID, envelope.Data); err != nil {
		return nil, req.RoomID, errorx.Decorate(err, "failed to append history message")
	}

	return &Response{RequestID: requestID, Timestamp: req.Timestamp}, req.RoomID, nil
}

func (h *Handler) aborted(r *http.Request) bool {
	if r.Context().Err() != nil {
		h.metrics.CounterIncrement(metricsAborted)
		return true
	}

	return false
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error, data map[string]string) {
	h.metrics.CounterIncrement(metricsFailures)

	if h.aborted(r) {
		return
	}

	res := common.NewErrorResponse(err, data)

	writeJSON(w, res.Status, res)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	json.NewEncoder(w).Encode(v) // nolint:errcheck
}
