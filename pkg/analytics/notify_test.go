package analytics

import (
	"testing"
	"time"
)

func TestNotifierFunc(t *testing.T) {
	var got Notification
	notifier := NotifierFunc(func(n Notification) { got = n })

	sent := Notification{Kind: NotifyCacheHit, At: time.Now(), Fields: map[string]interface{}{"key": "abc"}}
	notifier.Notify(sent)

	if got.Kind != NotifyCacheHit || got.Fields["key"] != "abc" {
		t.Errorf("Expected the notification to pass through, got %+v", got)
	}
}

func TestMultiNotifierFansOut(t *testing.T) {
	var first, second []NotificationKind
	multi := MultiNotifier(
		NotifierFunc(func(n Notification) { first = append(first, n.Kind) }),
		NotifierFunc(func(n Notification) { second = append(second, n.Kind) }),
	)

	multi.Notify(Notification{Kind: NotifyQueryCompleted})
	multi.Notify(Notification{Kind: NotifyCacheMiss})

	want := []NotificationKind{NotifyQueryCompleted, NotifyCacheMiss}
	for i, kind := range want {
		if first[i] != kind || second[i] != kind {
			t.Errorf("Expected %v at position %d, got %v and %v", kind, i, first[i], second[i])
		}
	}
}

func TestMultiNotifierSkipsNil(t *testing.T) {
	var count int
	multi := MultiNotifier(nil, NotifierFunc(func(Notification) { count++ }))

	multi.Notify(Notification{Kind: NotifyEventTracked})
	if count != 1 {
		t.Errorf("Expected the non-nil notifier to fire once, got %d", count)
	}
}

func TestNopNotifier(t *testing.T) {
	// Must not panic.
	NopNotifier().Notify(Notification{Kind: NotifyCacheCleared})
}
