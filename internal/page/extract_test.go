package page

import (
	"testing"
	"time"
)

func TestRecordFromRaw(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.FixedZone("X", 3600))

	rec := recordFromRaw(rawRecord{
		URL:         "https://x.com/u/status/1",
		Author:      "  Jane Doe ",
		PageTitle:   "Jane on X",
		Content:     "hello",
		PublishedAt: "2024-02-29T10:00:00.000Z",
	}, now)

	if rec.Author != "Jane Doe" {
		t.Errorf("Author: got %q", rec.Author)
	}
	if rec.Timestamp != "2024-03-01T11:00:00Z" {
		t.Errorf("Timestamp: got %q, want UTC RFC 3339", rec.Timestamp)
	}
	if rec.PublishedAt != "2024-02-29T10:00:00.000Z" {
		t.Errorf("PublishedAt: got %q", rec.PublishedAt)
	}
}

func TestRecordFromRaw_UnknownAuthor(t *testing.T) {
	rec := recordFromRaw(rawRecord{URL: "https://x.com/u/status/1"}, time.Now())
	if rec.Author != "Unknown" {
		t.Errorf("Author: got %q, want Unknown", rec.Author)
	}
}

func TestPermalinkFromPayload(t *testing.T) {
	tests := []struct {
		payload string
		want    string
	}{
		{`{"url":"https://x.com/u/status/1"}`, "https://x.com/u/status/1"},
		{`{"url":""}`, ""},
		{`not json`, ""},
	}
	for _, tt := range tests {
		if got := permalinkFromPayload(tt.payload); got != tt.want {
			t.Errorf("permalinkFromPayload(%q) = %q, want %q", tt.payload, got, tt.want)
		}
	}
}

func TestEventQueue(t *testing.T) {
	q := newEventQueue()
	q.push(1)
	q.push(2)

	select {
	case <-q.signal:
	default:
		t.Fatal("no signal after push")
	}
	got := q.drain()
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Errorf("drain: got %v, want [1 2]", got)
	}
	if len(q.drain()) != 0 {
		t.Error("second drain not empty")
	}
}
