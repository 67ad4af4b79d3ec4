package mqtt

import (
	"fmt"
	"testing"
)

func TestMessageLogAppendAndEntries(t *testing.T) {
	log := NewMessageLog(5)

	for i := 0; i < 3; i++ {
		log.Append(LogEntry{Topic: fmt.Sprintf("topic-%d", i)})
	}

	entries := log.Entries()
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	for i, entry := range entries {
		if entry.Topic != fmt.Sprintf("topic-%d", i) {
			t.Fatalf("expected topic-%d at index %d, got %s", i, i, entry.Topic)
		}
	}
}

func TestMessageLogEvictsOldest(t *testing.T) {
	log := NewMessageLog(3)

	for i := 0; i < 5; i++ {
		log.Append(LogEntry{Topic: fmt.Sprintf("topic-%d", i)})
	}

	entries := log.Entries()
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].Topic != "topic-2" {
		t.Fatalf("expected oldest entry topic-2, got %s", entries[0].Topic)
	}
	if entries[2].Topic != "topic-4" {
		t.Fatalf("expected newest entry topic-4, got %s", entries[2].Topic)
	}
}

func TestMessageLogClear(t *testing.T) {
	log := NewMessageLog(3)
	log.Append(LogEntry{Topic: "topic"})
	log.Clear()

	if log.Len() != 0 {
		t.Fatalf("expected empty log after clear, got %d entries", log.Len())
	}
	if entries := log.Entries(); len(entries) != 0 {
		t.Fatalf("expected no entries after clear, got %d", len(entries))
	}
}

func TestMessageLogWrapsAfterClear(t *testing.T) {
	log := NewMessageLog(2)
	log.Append(LogEntry{Topic: "a"})
	log.Append(LogEntry{Topic: "b"})
	log.Clear()
	log.Append(LogEntry{Topic: "c"})

	entries := log.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Topic != "c" {
		t.Fatalf("expected topic c, got %s", entries[0].Topic)
	}
}
