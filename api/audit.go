package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// AuditEvent identifies the type of security-relevant action being logged.
type AuditEvent string

const (
	AuditLoginSuccess   AuditEvent = "login_success"
	AuditLoginFailure   AuditEvent = "login_failure"
	AuditLoginForgery   AuditEvent = "login_forgery"
	AuditLoginBadReturn AuditEvent = "login_bad_return"
	AuditLogout         AuditEvent = "logout"
	AuditGateDeny       AuditEvent = "gate_deny"
)

// auditLogger wraps slog.Logger for structured security audit logging.
type auditLogger struct {
	logger  *slog.Logger
	metrics *metricsCollector
	webhook *auditWebhook
	trail   *AuditTrail
}

func newAuditLogger(logger *slog.Logger) *auditLogger {
	return &auditLogger{
		logger: logger.With("component", "audit"),
	}
}

// log writes a structured audit log entry. Passwords never reach it; terms
// are identified by id.
func (al *auditLogger) log(event AuditEvent, r *http.Request, attrs ...slog.Attr) {
	now := time.Now()
	baseAttrs := []slog.Attr{
		slog.String("event", string(event)),
		slog.String("remote_addr", r.RemoteAddr),
		slog.String("timestamp", now.UTC().Format(time.RFC3339)),
	}
	reqID := middleware.GetReqID(r.Context())
	if reqID != "" {
		baseAttrs = append(baseAttrs, slog.String("request_id", reqID))
	}
	baseAttrs = append(baseAttrs, attrs...)

	level := slog.LevelInfo
	if event == AuditGateDeny {
		level = slog.LevelDebug
	}
	al.logger.LogAttrs(r.Context(), level, "audit", baseAttrs...)
	if al.metrics != nil {
		al.metrics.recordEvent(event)
	}
	if event == AuditGateDeny {
		return
	}
	if al.webhook != nil {
		al.webhook.enqueue(webhookEventFrom(event, r.RemoteAddr, now, attrs))
	}
	if al.trail != nil {
		entry := auditEntryFrom(event, r.RemoteAddr, reqID, now, attrs)
		if _, err := al.trail.Append(entry); err != nil {
			al.logger.Warn("persisting audit entry", "event", string(event), "error", err)
		}
	}
}

// logTerm is a convenience for events tied to a term.
func (al *auditLogger) logTerm(event AuditEvent, r *http.Request, termID int64, extra ...slog.Attr) {
	attrs := []slog.Attr{
		slog.Int64("term_id", termID),
	}
	attrs = append(attrs, extra...)
	al.log(event, r, attrs...)
}

// logFailure logs a rejected request.
func (al *auditLogger) logFailure(event AuditEvent, r *http.Request, reason string, extra ...slog.Attr) {
	attrs := []slog.Attr{
		slog.String("reason", reason),
	}
	attrs = append(attrs, extra...)
	al.log(event, r, attrs...)
}

func auditEntryFrom(event AuditEvent, remoteAddr, requestID string, ts time.Time, attrs []slog.Attr) AuditEntry {
	e := AuditEntry{
		Event:      string(event),
		RemoteAddr: remoteAddr,
		RequestID:  requestID,
		CreatedAt:  ts.UTC().Format(time.RFC3339Nano),
	}
	for _, a := range attrs {
		if a.Value.Kind() != slog.KindInt64 && a.Key != "reason" {
			continue
		}
		switch a.Key {
		case "term_id":
			e.TermID = a.Value.Int64()
		case "object_id":
			e.ObjectID = a.Value.Int64()
		case "reason":
			e.Reason = a.Value.String()
		}
	}
	return e
}
