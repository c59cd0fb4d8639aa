// Package usage persists per-operation provider records to SQLite with
// async batched writes, so request handling never blocks on disk.
package usage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	log "github.com/inboxmux/inboxmux/internal/logging"
	_ "modernc.org/sqlite"
)

// Record is a single provider operation outcome for persistence.
type Record struct {
	Provider    string
	Operation   string
	RequestID   string
	RequestedAt time.Time
	Failed      bool
	ErrorKind   string
	StatusCode  int
	LatencyMs   int64
}

// Persister handles SQLite persistence for operation records with async
// batched writes.
type Persister struct {
	db            *sql.DB
	recordChan    chan Record
	flushTicker   *time.Ticker
	wg            sync.WaitGroup
	stopOnce      sync.Once
	stopChan      chan struct{}
	batchSize     int
	flushInterval time.Duration
	retentionDays int
	cleanupTicker *time.Ticker
	dbPath        string
}

const (
	defaultBatchSize         = 100
	defaultFlushInterval     = 5 * time.Second
	defaultRetentionDays     = 30
	defaultChannelBufferSize = 1000
)

// NewPersister initializes a new SQLite persister with the given configuration.
func NewPersister(dbPath string, batchSize, flushIntervalSecs, retentionDays int) (*Persister, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}

	// Expand ~ to home directory
	if strings.HasPrefix(dbPath, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dbPath = filepath.Join(home, dbPath[1:])
	}

	dbDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Open database with WAL mode
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=-64000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite works best with a single connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	if flushIntervalSecs <= 0 {
		flushIntervalSecs = int(defaultFlushInterval.Seconds())
	}
	if retentionDays <= 0 {
		retentionDays = defaultRetentionDays
	}

	p := &Persister{
		db:            db,
		recordChan:    make(chan Record, defaultChannelBufferSize),
		flushTicker:   time.NewTicker(time.Duration(flushIntervalSecs) * time.Second),
		stopChan:      make(chan struct{}),
		batchSize:     batchSize,
		flushInterval: time.Duration(flushIntervalSecs) * time.Second,
		retentionDays: retentionDays,
		cleanupTicker: time.NewTicker(24 * time.Hour),
		dbPath:        dbPath,
	}

	p.wg.Add(2)
	go p.writeLoop()
	go p.cleanupLoop()

	return p, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS operation_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		provider TEXT NOT NULL,
		operation TEXT NOT NULL,
		request_id TEXT NOT NULL DEFAULT '',
		requested_at TIMESTAMP NOT NULL,
		failed BOOLEAN NOT NULL DEFAULT 0,
		error_kind TEXT NOT NULL DEFAULT '',
		status_code INTEGER NOT NULL DEFAULT 0,
		latency_ms INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_operation_requested_at ON operation_records(requested_at);
	CREATE INDEX IF NOT EXISTS idx_operation_provider_op ON operation_records(provider, operation);
	`

	_, err := db.Exec(schema)
	return err
}

// Enqueue adds a record to the persistence queue.
// Non-blocking; drops records if the queue is full.
func (p *Persister) Enqueue(record Record) {
	if p == nil {
		return
	}
	select {
	case p.recordChan <- record:
	default:
		log.Warnf("Usage persistence queue full, dropping record for %s/%s", record.Provider, record.Operation)
	}
}

func (p *Persister) writeLoop() {
	defer p.wg.Done()

	batch := make([]Record, 0, p.batchSize)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := p.writeBatch(batch); err != nil {
			log.Errorf("Failed to write usage batch: %v", err)
		}
		batch = batch[:0]
	}

	for {
		select {
		case record := <-p.recordChan:
			batch = append(batch, record)
			if len(batch) >= p.batchSize {
				flush()
			}
		case <-p.flushTicker.C:
			flush()
		case <-p.stopChan:
			// Drain remaining records
			for {
				select {
				case record := <-p.recordChan:
					batch = append(batch, record)
					if len(batch) >= p.batchSize {
						flush()
					}
				default:
					flush()
					return
				}
			}
		}
	}
}

func (p *Persister) writeBatch(records []Record) error {
	if len(records) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO operation_records (
			provider, operation, request_id, requested_at,
			failed, error_kind, status_code, latency_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, record := range records {
		_, err := stmt.ExecContext(ctx,
			record.Provider,
			record.Operation,
			record.RequestID,
			record.RequestedAt,
			record.Failed,
			record.ErrorKind,
			record.StatusCode,
			record.LatencyMs,
		)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to insert record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (p *Persister) cleanupLoop() {
	defer p.wg.Done()

	for {
		select {
		case <-p.cleanupTicker.C:
			if err := p.cleanup(); err != nil {
				log.Errorf("Failed to cleanup old operation records: %v", err)
			}
		case <-p.stopChan:
			return
		}
	}
}

// cleanup removes records older than the retention period.
func (p *Persister) cleanup() error {
	cutoffTime := time.Now().AddDate(0, 0, -p.retentionDays)

	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Minute)
	defer cancel()

	result, err := p.db.ExecContext(ctx, `
		DELETE FROM operation_records WHERE requested_at < ?
	`, cutoffTime)
	if err != nil {
		return err
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected > 0 {
		log.Infof("Cleaned up %d operation records older than %d days", rowsAffected, p.retentionDays)
	}

	return nil
}

// ProviderTotal aggregates persisted outcomes for one provider.
type ProviderTotal struct {
	Provider  string `json:"provider"`
	Requests  int64  `json:"requests"`
	Failures  int64  `json:"failures"`
	AvgMs     int64  `json:"avg_latency_ms"`
	LastSeen  string `json:"last_seen,omitempty"`
}

// Totals aggregates persisted records per provider since the given time.
func (p *Persister) Totals(ctx context.Context, since time.Time) ([]ProviderTotal, error) {
	if p == nil {
		return nil, nil
	}
	rows, err := p.db.QueryContext(ctx, `
		SELECT provider,
		       COUNT(*),
		       COALESCE(SUM(failed), 0),
		       COALESCE(CAST(AVG(latency_ms) AS INTEGER), 0),
		       COALESCE(MAX(requested_at), '')
		FROM operation_records
		WHERE requested_at >= ?
		GROUP BY provider
		ORDER BY provider
	`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var totals []ProviderTotal
	for rows.Next() {
		var t ProviderTotal
		if err := rows.Scan(&t.Provider, &t.Requests, &t.Failures, &t.AvgMs, &t.LastSeen); err != nil {
			return nil, err
		}
		totals = append(totals, t)
	}
	return totals, rows.Err()
}

// Stop gracefully shuts down the persister, flushing pending writes.
func (p *Persister) Stop() error {
	if p == nil {
		return nil
	}

	var err error
	p.stopOnce.Do(func() {
		close(p.stopChan)
		p.flushTicker.Stop()
		p.cleanupTicker.Stop()
		p.wg.Wait()
		if p.db != nil {
			err = p.db.Close()
		}
	})

	return err
}

// DBPath returns the filesystem path to the SQLite database.
func (p *Persister) DBPath() string {
	if p == nil {
		return ""
	}
	return p.dbPath
}
