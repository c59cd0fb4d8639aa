package usage

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func TestPersisterFlushesOnStop(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "usage.db")

	p, err := NewPersister(dbPath, 100, 60, 7)
	if err != nil {
		t.Fatalf("NewPersister failed: %v", err)
	}

	now := time.Now()
	p.Enqueue(Record{Provider: "mailtm", Operation: "create_address", RequestedAt: now, LatencyMs: 120})
	p.Enqueue(Record{Provider: "mailtm", Operation: "list_messages", RequestedAt: now, LatencyMs: 80})
	p.Enqueue(Record{Provider: "guerrilla", Operation: "create_address", RequestedAt: now, Failed: true, ErrorKind: "rate_limit", StatusCode: 429, LatencyMs: 40})

	// Stop drains the queue and flushes before closing.
	if err := p.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	reopened, err := NewPersister(dbPath, 100, 60, 7)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer func() { _ = reopened.Stop() }()

	totals, err := reopened.Totals(context.Background(), now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("Totals failed: %v", err)
	}
	if len(totals) != 2 {
		t.Fatalf("got %d provider totals, want 2: %+v", len(totals), totals)
	}

	byName := map[string]ProviderTotal{}
	for _, tot := range totals {
		byName[tot.Provider] = tot
	}
	if byName["mailtm"].Requests != 2 || byName["mailtm"].Failures != 0 {
		t.Errorf("mailtm totals = %+v", byName["mailtm"])
	}
	if byName["guerrilla"].Requests != 1 || byName["guerrilla"].Failures != 1 {
		t.Errorf("guerrilla totals = %+v", byName["guerrilla"])
	}
	if byName["mailtm"].AvgMs != 100 {
		t.Errorf("mailtm avg latency = %d, want 100", byName["mailtm"].AvgMs)
	}
}

func TestNilPersisterIsSafe(t *testing.T) {
	var p *Persister
	p.Enqueue(Record{Provider: "mailtm"})
	if err := p.Stop(); err != nil {
		t.Errorf("Stop on nil = %v", err)
	}
	if p.DBPath() != "" {
		t.Error("DBPath on nil must be empty")
	}
}

func TestNewPersisterRequiresPath(t *testing.T) {
	if _, err := NewPersister("", 0, 0, 0); err == nil {
		t.Fatal("expected error for empty path")
	}
}
