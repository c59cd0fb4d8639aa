package provider

import (
	"testing"
	"time"
)

func TestFilterPageUnreadThenPagination(t *testing.T) {
	msgs := []Message{
		{ID: "1", Unread: true},
		{ID: "2", Unread: false},
		{ID: "3", Unread: true},
		{ID: "4", Unread: false},
		{ID: "5", Unread: false},
	}

	// Unread filter first narrows 5 messages to 2, then offset=1 limit=1
	// addresses the filtered sequence.
	got := FilterPage(msgs, ListQuery{UnreadOnly: true, Offset: 1, Limit: 1})
	if len(got) != 1 || got[0].ID != "3" {
		t.Fatalf("got %v, want single message 3", got)
	}
}

func TestFilterPageSince(t *testing.T) {
	base := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	msgs := []Message{
		{ID: "old", ReceivedAt: base.Add(-time.Hour), Unread: true},
		{ID: "edge", ReceivedAt: base, Unread: true},
		{ID: "new", ReceivedAt: base.Add(time.Hour), Unread: false},
	}

	// Since is inclusive and combines with the unread filter before
	// pagination.
	got := FilterPage(msgs, ListQuery{Since: base})
	if len(got) != 2 || got[0].ID != "edge" || got[1].ID != "new" {
		t.Fatalf("since filter got %v, want [edge new]", got)
	}

	got = FilterPage(msgs, ListQuery{Since: base, UnreadOnly: true, Limit: 1})
	if len(got) != 1 || got[0].ID != "edge" {
		t.Fatalf("since+unread+limit got %v, want [edge]", got)
	}
}

func TestFilterPageBounds(t *testing.T) {
	msgs := []Message{{ID: "1"}, {ID: "2"}}

	if got := FilterPage(msgs, ListQuery{Offset: 5}); len(got) != 0 {
		t.Errorf("offset past end: got %d messages, want 0", len(got))
	}
	if got := FilterPage(msgs, ListQuery{Limit: 10}); len(got) != 2 {
		t.Errorf("oversized limit: got %d messages, want 2", len(got))
	}
	if got := FilterPage(msgs, ListQuery{}); len(got) != 2 {
		t.Errorf("no constraints: got %d messages, want 2", len(got))
	}
}
