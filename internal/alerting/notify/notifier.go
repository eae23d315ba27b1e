package notify

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	analytics "drycell-monitor/internal/analytics/domain"
)

// EventAnomaly and EventStatus are the alert event types the refresh loop
// raises.
const (
	EventAnomaly = "anomaly"
	EventStatus  = "status"
)

// Event is one alert-worthy observation for a cell metric.
type Event struct {
	Type   string
	CellID string
	Metric analytics.Metric
	Value  float64
	Flag   analytics.AnomalyFlag
	Band   analytics.Band
	At     time.Time
}

// Clock provides time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

type sendRecord struct {
	at   time.Time
	hash string
}

// Notifier renders alert events and delivers them through a channel. Repeat
// alerts for the same cell, metric and event type are rate limited by a
// cooldown, and identical content within the dedupe window is suppressed.
type Notifier struct {
	channel  Channel
	template *Template
	clock    Clock

	mu           sync.Mutex
	sent         map[string]sendRecord
	cooldown     time.Duration
	dedupeWindow time.Duration
}

// Option configures the notifier.
type Option func(*Notifier)

// WithClock overrides the default clock.
func WithClock(clock Clock) Option {
	return func(n *Notifier) {
		if clock != nil {
			n.clock = clock
		}
	}
}

// WithCooldown sets a minimum interval between alerts for the same cell,
// metric and event type.
func WithCooldown(interval time.Duration) Option {
	return func(n *Notifier) {
		if interval > 0 {
			n.cooldown = interval
		}
	}
}

// WithDedupeWindow suppresses identical alerts within the window.
func WithDedupeWindow(window time.Duration) Option {
	return func(n *Notifier) {
		if window > 0 {
			n.dedupeWindow = window
		}
	}
}

// NewNotifier constructs an alert notifier.
func NewNotifier(channel Channel, template *Template, opts ...Option) (*Notifier, error) {
	if channel == nil {
		return nil, fmt.Errorf("alert notifier: nil channel")
	}
	if template == nil {
		defaultTemplate, err := NewTemplate("")
		if err != nil {
			return nil, err
		}
		template = defaultTemplate
	}
	n := &Notifier{
		channel:  channel,
		template: template,
		clock:    systemClock{},
		sent:     make(map[string]sendRecord),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// Notify renders and sends one alert event. Delivery failures are dropped;
// alerting is best effort and must never stall the refresh loop.
func (n *Notifier) Notify(ctx context.Context, event Event) {
	if n == nil || n.channel == nil {
		return
	}
	content, err := n.template.Render(buildTemplateData(event))
	if err != nil {
		return
	}
	key := fmt.Sprintf("%s|%s|%s", event.CellID, event.Metric, event.Type)
	if !n.shouldSend(key, content) {
		return
	}
	if err := n.channel.Send(ctx, content); err != nil {
		return
	}
	n.markSent(key, content)
}

func (n *Notifier) shouldSend(key, content string) bool {
	if n.cooldown <= 0 && n.dedupeWindow <= 0 {
		return true
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	record, ok := n.sent[key]
	if !ok {
		return true
	}
	now := n.clock.Now()
	if n.cooldown > 0 && now.Sub(record.at) < n.cooldown {
		return false
	}
	if n.dedupeWindow > 0 && record.hash == contentHash(content) && now.Sub(record.at) < n.dedupeWindow {
		return false
	}
	return true
}

func (n *Notifier) markSent(key, content string) {
	if n.cooldown <= 0 && n.dedupeWindow <= 0 {
		return
	}
	n.mu.Lock()
	n.sent[key] = sendRecord{at: n.clock.Now(), hash: contentHash(content)}
	n.mu.Unlock()
}

func contentHash(content string) string {
	sum := sha1.Sum([]byte(content))
	return hex.EncodeToString(sum[:])
}

func buildTemplateData(event Event) TemplateData {
	data := TemplateData{
		Cell:       event.CellID,
		Metric:     string(event.Metric),
		Value:      fmt.Sprintf("%.3f", event.Value),
		Band:       string(event.Band),
		At:         event.At.UTC().Format(time.RFC3339),
		Event:      event.Type,
		EventLabel: eventLabel(event.Type),
		Suggestion: suggestionFor(event),
	}
	if event.Type == EventAnomaly {
		data.ZScore = fmt.Sprintf("%.2f", event.Flag.ZScore)
		data.Threshold = fmt.Sprintf("%.2f", event.Flag.Threshold)
	}
	return data
}

func eventLabel(event string) string {
	switch event {
	case EventAnomaly:
		return "Anomaly Detected"
	case EventStatus:
		return "Status Alert"
	default:
		return event
	}
}

func suggestionFor(event Event) string {
	switch {
	case event.Band == analytics.BandCritical:
		return "Investigate immediately and mitigate risk."
	case event.Type == EventAnomaly:
		return "Verify the reading against recent cell behavior."
	case event.Band == analytics.BandUnknown && strings.HasPrefix(string(event.Metric), "vibration"):
		return "Check the IMU sensor wiring."
	default:
		return "Monitor the cell condition."
	}
}
