package workspace

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/marcboeker/go-duckdb"

	"github.com/shape-studio/backend/internal/models"
)

// ChangeBatch is one applied sync result: the redo/undo pair plus the
// metadata of the run that produced it.
type ChangeBatch struct {
	ID        string          `json:"id"`
	FileID    string          `json:"fileId"`
	SessionID string          `json:"sessionId,omitempty"`
	Kind      string          `json:"kind"`
	CreatedAt time.Time       `json:"createdAt"`
	Redo      []models.Change `json:"redo"`
	Undo      []models.Change `json:"undo"`
}

// ChangeLog persists applied change batches in a DuckDB file, so sync
// history survives restarts and large histories stay out of RAM.
type ChangeLog struct {
	db         *sql.DB
	dbPath     string
	batchCount int
	flushSize  int
	pending    []*ChangeBatch
	lastError  error

	mu sync.Mutex
}

// NewChangeLog creates a change log under the given directory, one DuckDB
// file per workspace file.
func NewChangeLog(dir, fileID string) (*ChangeLog, error) {
	dbPath := filepath.Join(dir, fmt.Sprintf("changes_%s.duckdb", fileID))
	return NewChangeLogAtPath(dbPath)
}

// NewChangeLogAtPath creates a change log at a specific path.
func NewChangeLogAtPath(dbPath string) (*ChangeLog, error) {
	fmt.Printf("[ChangeLog] Creating database at: %s\n", dbPath)

	connector, err := duckdb.NewConnector(dbPath, func(execer driver.ExecerContext) error {
		pragmas := []string{
			"PRAGMA memory_limit='512MB'",
			"PRAGMA threads=2",
			"PRAGMA enable_progress_bar=false",
		}
		for _, pragma := range pragmas {
			if _, err := execer.ExecContext(context.Background(), pragma, nil); err != nil {
				fmt.Printf("[ChangeLog] Pragma error: %v\n", err)
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create DuckDB connector: %w", err)
	}

	db := sql.OpenDB(connector)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS change_batches (
			seq        INTEGER PRIMARY KEY,
			id         VARCHAR NOT NULL,
			file_id    VARCHAR NOT NULL,
			session_id VARCHAR,
			kind       VARCHAR NOT NULL,
			created_at BIGINT NOT NULL,
			redo_count INTEGER NOT NULL,
			undo_count INTEGER NOT NULL,
			redo       VARCHAR NOT NULL,
			undo       VARCHAR NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		os.Remove(dbPath)
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM change_batches").Scan(&count); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to get batch count: %w", err)
	}

	return &ChangeLog{
		db:         db,
		dbPath:     dbPath,
		batchCount: count,
		flushSize:  64,
		pending:    make([]*ChangeBatch, 0, 64),
	}, nil
}

// Append records a batch. Batches are buffered and flushed in groups via
// the native Appender API.
func (cl *ChangeLog) Append(batch *ChangeBatch) *ChangeBatch {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	if batch.ID == "" {
		batch.ID = uuid.New().String()
	}
	if batch.CreatedAt.IsZero() {
		batch.CreatedAt = time.Now().UTC()
	}
	cl.pending = append(cl.pending, batch)
	cl.batchCount++

	if len(cl.pending) >= cl.flushSize {
		if err := cl.flushLocked(); err != nil {
			cl.lastError = err
			fmt.Printf("[ChangeLog] flush error: %v\n", err)
		}
	}
	return batch
}

// LastError returns the last error that occurred during a background flush.
func (cl *ChangeLog) LastError() error {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return cl.lastError
}

// Flush writes any buffered batches to the database.
func (cl *ChangeLog) Flush() error {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return cl.flushLocked()
}

func (cl *ChangeLog) flushLocked() error {
	if len(cl.pending) == 0 {
		return nil
	}

	conn, err := cl.db.Conn(context.Background())
	if err != nil {
		return fmt.Errorf("failed to get connection: %w", err)
	}
	defer conn.Close()

	err = conn.Raw(func(driverConn interface{}) error {
		dConn, ok := driverConn.(*duckdb.Conn)
		if !ok {
			return fmt.Errorf("failed to cast to duckdb.Conn")
		}

		appender, err := duckdb.NewAppenderFromConn(dConn, "", "change_batches")
		if err != nil {
			return fmt.Errorf("failed to create appender: %w", err)
		}
		defer appender.Close()

		baseSeq := cl.batchCount - len(cl.pending)
		for i, batch := range cl.pending {
			redoJSON, err := json.Marshal(batch.Redo)
			if err != nil {
				return fmt.Errorf("failed to marshal redo of %s: %w", batch.ID, err)
			}
			undoJSON, err := json.Marshal(batch.Undo)
			if err != nil {
				return fmt.Errorf("failed to marshal undo of %s: %w", batch.ID, err)
			}
			err = appender.AppendRow(
				int32(baseSeq+i),
				batch.ID,
				batch.FileID,
				batch.SessionID,
				batch.Kind,
				batch.CreatedAt.UnixMilli(),
				int32(len(batch.Redo)),
				int32(len(batch.Undo)),
				string(redoJSON),
				string(undoJSON),
			)
			if err != nil {
				return fmt.Errorf("failed to append row %d: %w", i, err)
			}
		}
		return appender.Flush()
	})
	if err != nil {
		return fmt.Errorf("appender error: %w", err)
	}

	cl.pending = cl.pending[:0]
	return nil
}

// Len returns the total number of recorded batches, buffered ones included.
func (cl *ChangeLog) Len() int {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return cl.batchCount
}

// ListBatches returns recorded batches for a file, newest first, paginated.
func (cl *ChangeLog) ListBatches(ctx context.Context, fileID string, page, pageSize int) ([]*ChangeBatch, int, error) {
	if err := cl.Flush(); err != nil {
		return nil, 0, err
	}

	var total int
	err := cl.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM change_batches WHERE file_id = ?", fileID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count query failed: %w", err)
	}
	if total == 0 {
		return []*ChangeBatch{}, 0, nil
	}

	offset := (page - 1) * pageSize
	rows, err := cl.db.QueryContext(ctx, `
		SELECT id, file_id, session_id, kind, created_at, redo, undo
		FROM change_batches WHERE file_id = ?
		ORDER BY seq DESC LIMIT ? OFFSET ?
	`, fileID, pageSize, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	batches := make([]*ChangeBatch, 0, pageSize)
	for rows.Next() {
		batch, err := scanBatch(rows)
		if err != nil {
			return nil, 0, err
		}
		batches = append(batches, batch)
	}
	return batches, total, rows.Err()
}

// GetBatch returns one batch by id.
func (cl *ChangeLog) GetBatch(ctx context.Context, id string) (*ChangeBatch, error) {
	if err := cl.Flush(); err != nil {
		return nil, err
	}

	rows, err := cl.db.QueryContext(ctx, `
		SELECT id, file_id, session_id, kind, created_at, redo, undo
		FROM change_batches WHERE id = ? LIMIT 1
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, fmt.Errorf("batch not found: %s", id)
	}
	return scanBatch(rows)
}

func scanBatch(rows *sql.Rows) (*ChangeBatch, error) {
	var batch ChangeBatch
	var sessionID sql.NullString
	var createdMs int64
	var redoJSON, undoJSON string

	err := rows.Scan(&batch.ID, &batch.FileID, &sessionID, &batch.Kind, &createdMs, &redoJSON, &undoJSON)
	if err != nil {
		return nil, err
	}
	batch.SessionID = sessionID.String
	batch.CreatedAt = time.UnixMilli(createdMs).UTC()

	if err := json.Unmarshal([]byte(redoJSON), &batch.Redo); err != nil {
		return nil, fmt.Errorf("failed to unmarshal redo of %s: %w", batch.ID, err)
	}
	if err := json.Unmarshal([]byte(undoJSON), &batch.Undo); err != nil {
		return nil, fmt.Errorf("failed to unmarshal undo of %s: %w", batch.ID, err)
	}
	return &batch, nil
}

// Close flushes and closes the database, keeping the file on disk.
func (cl *ChangeLog) Close() error {
	if err := cl.Flush(); err != nil {
		fmt.Printf("[ChangeLog] flush on close failed: %v\n", err)
	}
	if cl.db != nil {
		return cl.db.Close()
	}
	return nil
}

// Remove closes the database and deletes the file.
func (cl *ChangeLog) Remove() error {
	if cl.db != nil {
		cl.db.Close()
	}
	if cl.dbPath != "" {
		return os.Remove(cl.dbPath)
	}
	return nil
}
