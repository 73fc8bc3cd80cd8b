package core

import (
	"testing"
	"time"
)

// mustEvent drains ch until an event of the wanted kind shows up, skipping
// everything else the hub pushed in between.
func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev := <-ch:
			if ev != nil && ev.Kind == kind {
				return ev
			}
		case <-timeout:
			t.Fatalf("no event of kind %v within 2s", kind)
			return nil
		}
	}
}
