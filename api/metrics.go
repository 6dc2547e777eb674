package api

import (
	"sync"
	"time"
)

// AlertType identifies the kind of anomaly detected.
type AlertType string

const (
	AlertLoginFailureSpike AlertType = "login_failure_spike"
	AlertForgerySpike      AlertType = "forgery_spike"
)

// AlertEvent describes an anomaly that triggered an alert.
type AlertEvent struct {
	Type      AlertType `json:"type"`
	Message   string    `json:"message"`
	Count     int       `json:"count"`
	Threshold int       `json:"threshold"`
	Timestamp time.Time `json:"timestamp"`
}

// AlertFunc is the callback invoked when an anomaly is detected.
type AlertFunc func(AlertEvent)

// slidingWindow counts events within a trailing time window.
type slidingWindow struct {
	events    []time.Time
	window    time.Duration
	threshold int
}

// add records an event at now and reports the count if the threshold was
// reached, resetting the window so one spike raises one alert.
func (s *slidingWindow) add(now time.Time) (int, bool) {
	s.events = append(s.events, now)
	s.events = trimWindow(s.events, now, s.window)
	if len(s.events) < s.threshold {
		return 0, false
	}
	n := len(s.events)
	s.events = s.events[:0]
	return n, true
}

// metricsCollector watches audit events for spikes. It only observes;
// nothing is ever blocked.
type metricsCollector struct {
	mu sync.Mutex

	loginFailures slidingWindow
	forgeries     slidingWindow

	now     func() time.Time
	alertFn AlertFunc
}

const (
	defaultLoginFailureWindow    = 1 * time.Minute
	defaultLoginFailureThreshold = 50
	defaultForgeryWindow         = 5 * time.Minute
	defaultForgeryThreshold      = 100
)

func newMetricsCollector(alertFn AlertFunc) *metricsCollector {
	return &metricsCollector{
		loginFailures: slidingWindow{window: defaultLoginFailureWindow, threshold: defaultLoginFailureThreshold},
		forgeries:     slidingWindow{window: defaultForgeryWindow, threshold: defaultForgeryThreshold},
		now:           time.Now,
		alertFn:       alertFn,
	}
}

// recordEvent inspects an audit event and updates the relevant counters.
func (m *metricsCollector) recordEvent(event AuditEvent) {
	if m == nil || m.alertFn == nil {
		return
	}
	var (
		w       *slidingWindow
		typ     AlertType
		message string
	)
	switch event {
	case AuditLoginFailure:
		w, typ, message = &m.loginFailures, AlertLoginFailureSpike, "login failure rate exceeds threshold"
	case AuditLoginForgery:
		w, typ, message = &m.forgeries, AlertForgerySpike, "forged or expired nonce rate exceeds threshold"
	default:
		return
	}

	m.mu.Lock()
	now := m.now()
	count, fire := w.add(now)
	threshold := w.threshold
	m.mu.Unlock()

	if fire {
		m.alertFn(AlertEvent{
			Type:      typ,
			Message:   message,
			Count:     count,
			Threshold: threshold,
			Timestamp: now,
		})
	}
}

// trimWindow removes entries older than (now - window) from the sorted slice.
func trimWindow(times []time.Time, now time.Time, window time.Duration) []time.Time {
	cutoff := now.Add(-window)
	start := 0
	for start < len(times) && times[start].Before(cutoff) {
		start++
	}
	return times[start:]
}
