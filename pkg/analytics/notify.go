package analytics

import "time"

// NotificationKind identifies an observability notification.
type NotificationKind string

const (
	NotifyCacheHit     NotificationKind = "cache.hit"
	NotifyCacheMiss    NotificationKind = "cache.miss"
	NotifyCacheSet     NotificationKind = "cache.set"
	NotifyCacheExpired NotificationKind = "cache.expired"
	NotifyCacheEvicted NotificationKind = "cache.evicted"
	NotifyCacheCleared NotificationKind = "cache.cleared"

	NotifyQueryCompleted NotificationKind = "query.completed"
	NotifyQueryFailed    NotificationKind = "query.failed"

	NotifyAnomalyDetected NotificationKind = "anomaly.detected"

	NotifyEventTracked  NotificationKind = "ingest.event"
	NotifyPointRecorded NotificationKind = "ingest.point"
)

// Notification is an observability event emitted by the core. It is
// informational only and never affects the operation that emitted it.
type Notification struct {
	Kind   NotificationKind
	At     time.Time
	Fields map[string]interface{}
}

// Notifier consumes observability notifications. Implementations must
// not block: notifications are emitted synchronously from hot paths.
type Notifier interface {
	Notify(n Notification)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(n Notification)

// Notify calls f(n).
func (f NotifierFunc) Notify(n Notification) { f(n) }

type nopNotifier struct{}

func (nopNotifier) Notify(Notification) {}

// NopNotifier returns a Notifier that discards all notifications.
func NopNotifier() Notifier { return nopNotifier{} }

type multiNotifier []Notifier

func (m multiNotifier) Notify(n Notification) {
	for _, sub := range m {
		if sub != nil {
			sub.Notify(n)
		}
	}
}

// MultiNotifier fans one notification out to several consumers.
func MultiNotifier(notifiers ...Notifier) Notifier {
	return multiNotifier(notifiers)
}
