package api

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	webhookQueueSize  = 1024
	webhookUserAgent  = "termgate-audit/1.0"
	webhookMaxRetries = 1
)

// webhookEvent is the JSON body POSTed for each audit event.
type webhookEvent struct {
	Event      string            `json:"event"`
	TermID     int64             `json:"term_id,omitempty"`
	RemoteAddr string            `json:"remote_addr,omitempty"`
	Timestamp  string            `json:"timestamp"`
	Attrs      map[string]string `json:"attrs,omitempty"`
}

// auditWebhook forwards audit events to an external collector. Events are
// queued without blocking the request; a full queue drops events.
type auditWebhook struct {
	url     string
	header  [2]string
	client  *http.Client
	logger  *slog.Logger
	backoff time.Duration

	mu     sync.Mutex
	closed bool
	events chan webhookEvent
	wg     sync.WaitGroup
}

// newAuditWebhook starts a forwarder. authHeader is "Name: value".
func newAuditWebhook(url, authHeader string, logger *slog.Logger) *auditWebhook {
	if logger == nil {
		logger = slog.Default()
	}
	w := &auditWebhook{
		url:     url,
		client:  &http.Client{Timeout: 10 * time.Second},
		logger:  logger.With("component", "audit_webhook"),
		backoff: time.Second,
		events:  make(chan webhookEvent, webhookQueueSize),
	}
	if name, value, ok := strings.Cut(authHeader, ":"); ok {
		w.header = [2]string{strings.TrimSpace(name), strings.TrimSpace(value)}
	}
	w.wg.Add(1)
	go w.run()
	return w
}

// enqueue queues evt for delivery. Events arriving after close are dropped.
func (w *auditWebhook) enqueue(evt webhookEvent) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		w.logger.Warn("webhook closed, dropping event", "event", evt.Event)
		return
	}
	select {
	case w.events <- evt:
	default:
		w.logger.Warn("queue full, dropping event", "event", evt.Event)
	}
}

// close stops accepting events and waits for queued ones to be sent.
func (w *auditWebhook) close() {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.events)
	}
	w.mu.Unlock()
	w.wg.Wait()
}

func (w *auditWebhook) run() {
	defer w.wg.Done()
	for evt := range w.events {
		w.deliver(evt)
	}
}

// deliver POSTs evt, retrying server errors and transport failures.
func (w *auditWebhook) deliver(evt webhookEvent) {
	body, err := json.Marshal(evt)
	if err != nil {
		w.logger.Warn("encoding event", "error", err)
		return
	}

	for attempt := 0; attempt <= webhookMaxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(w.backoff)
		}
		status, err := w.post(body)
		switch {
		case err != nil:
			w.logger.Warn("delivery failed", "error", err, "attempt", attempt+1)
		case status >= 500:
			w.logger.Warn("collector error", "status", status, "attempt", attempt+1)
		case status >= 400:
			w.logger.Warn("collector rejected event", "status", status, "event", evt.Event)
			return
		default:
			return
		}
	}
}

func (w *auditWebhook) post(body []byte) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), w.client.Timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", webhookUserAgent)
	if w.header[0] != "" {
		req.Header.Set(w.header[0], w.header[1])
	}
	resp, err := w.client.Do(req)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}

// webhookEventFrom flattens an audit record for the collector.
func webhookEventFrom(event AuditEvent, remoteAddr string, ts time.Time, attrs []slog.Attr) webhookEvent {
	evt := webhookEvent{
		Event:      string(event),
		RemoteAddr: remoteAddr,
		Timestamp:  ts.UTC().Format(time.RFC3339),
	}
	for _, a := range attrs {
		if a.Key == "term_id" && a.Value.Kind() == slog.KindInt64 {
			evt.TermID = a.Value.Int64()
			continue
		}
		if evt.Attrs == nil {
			evt.Attrs = make(map[string]string)
		}
		evt.Attrs[a.Key] = a.Value.String()
	}
	return evt
}
