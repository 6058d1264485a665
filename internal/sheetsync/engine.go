package sheetsync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"demand_forecast/internal/ingest"
	"demand_forecast/internal/metrics"
	"demand_forecast/internal/model"
	"demand_forecast/internal/sheets"
	"demand_forecast/internal/store"
)

const (
	DefaultMaxAttempts = 3
	DefaultBaseBackoff = time.Second
)

// Engine reconciles a Store with a remote Table. It is the only component
// that clears the store's EditSet.
type Engine struct {
	table sheets.Table
	store *store.Store

	MaxAttempts int
	BaseBackoff time.Duration
	// Sleep waits between retries. Tests replace it to avoid real delays.
	Sleep func(ctx context.Context, d time.Duration) error

	// mu serialises Pull and Push so a second push cannot resend cells
	// the first one has not cleared yet.
	mu     sync.Mutex
	layout *ingest.Layout
}

func New(table sheets.Table, st *store.Store) *Engine {
	return &Engine{
		table:       table,
		store:       st,
		MaxAttempts: DefaultMaxAttempts,
		BaseBackoff: DefaultBaseBackoff,
		Sleep:       sleepContext,
	}
}

// PullResult summarises a pull.
type PullResult struct {
	Rows     int      `json:"rows"`
	Warnings []string `json:"warnings,omitempty"`
}

// PushResult summarises a push.
type PushResult struct {
	Cells    int `json:"cells"`
	Ranges   int `json:"ranges"`
	Attempts int `json:"attempts"`
}

// Layout returns the header layout seen on the last pull, or nil.
func (e *Engine) Layout() *ingest.Layout {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.layout
}

// SetLayout installs a header layout restored from saved state.
func (e *Engine) SetLayout(l *ingest.Layout) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.layout = l
}

// Pull fetches the whole remote table and replaces the store contents.
// Pending edits are discarded; the remote is authoritative.
func (e *Engine) Pull(ctx context.Context) (PullResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	values, err := e.fetchWithRetry(ctx)
	if err != nil {
		return PullResult{}, err
	}

	sheet, err := ingest.Decode(values)
	if err != nil {
		return PullResult{}, fmt.Errorf("decoding remote table: %w", err)
	}
	if err := e.store.LoadRows(sheet.Rows); err != nil {
		return PullResult{}, err
	}
	e.layout = sheet.Layout

	metrics.Pulls.Inc()
	metrics.RowsLoaded.Set(float64(len(sheet.Rows)))
	metrics.PendingEdits.Set(0)
	log.Printf("pull: %d rows, %d warnings", len(sheet.Rows), len(sheet.Warnings))
	return PullResult{Rows: len(sheet.Rows), Warnings: sheet.Warnings}, nil
}

// Push sends the pending cells in a single batch update and, on success,
// clears exactly the cells that were sent. An empty EditSet makes no
// remote call.
func (e *Engine) Push(ctx context.Context) (PushResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	sent := e.store.SnapshotDiff()
	if sent.Len() == 0 {
		return PushResult{}, nil
	}

	layout, err := e.currentLayout(ctx)
	if err != nil {
		return PushResult{}, err
	}
	layout = layout.Clone()

	cells := make(map[gridCell]string, sent.Len())
	for _, c := range sent.Cells() {
		pos, ok := e.store.Position(c.Key)
		if !ok {
			return PushResult{}, &model.UnknownKeyError{Key: c.Key, Column: string(c.Column)}
		}
		col, added := layout.Ensure(c.Column)
		if added {
			cells[gridCell{Row: 0, Col: col}] = layout.Headers[col]
			log.Printf("push: adding column %q at %s", c.Column, sheets.ColumnLetter(col))
		}
		cells[gridCell{Row: pos + 1, Col: col}] = sent[c]
	}

	updates := rectangles(cells)
	attempts, err := e.withRetry(ctx, "update", func() error {
		return e.table.UpdateCells(ctx, updates)
	})
	if err != nil {
		return PushResult{Attempts: attempts}, err
	}

	e.layout = layout
	e.store.ClearSent(sent)

	res := PushResult{Cells: len(cells), Ranges: len(updates), Attempts: attempts}
	metrics.Pushes.Inc()
	metrics.CellsPushed.Add(float64(res.Cells))
	metrics.RangesPushed.Add(float64(res.Ranges))
	metrics.PendingEdits.Set(float64(e.store.SnapshotDiff().Len()))
	log.Printf("push: %d cells in %d ranges (%d attempts)", res.Cells, res.Ranges, res.Attempts)
	return res, nil
}

func (e *Engine) currentLayout(ctx context.Context) (*ingest.Layout, error) {
	if e.layout != nil {
		return e.layout, nil
	}
	values, err := e.fetchWithRetry(ctx)
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return ingest.DefaultLayout(), nil
	}
	e.layout = ingest.NewLayout(values[0])
	return e.layout, nil
}

func (e *Engine) fetchWithRetry(ctx context.Context) ([][]string, error) {
	var values [][]string
	_, err := e.withRetry(ctx, "fetch", func() error {
		var err error
		values, err = e.table.FetchAll(ctx)
		return err
	})
	return values, err
}

// withRetry runs fn, retrying rate-limited failures with exponential
// backoff. Any other failure is returned at once. It reports the number
// of attempts made.
func (e *Engine) withRetry(ctx context.Context, op string, fn func() error) (int, error) {
	maxAttempts := max(e.MaxAttempts, 1)
	var rl *model.RateLimitedError

	for attempt := 0; attempt < maxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return attempt + 1, nil
		}
		if !errors.As(err, &rl) {
			countRemoteError(err)
			return attempt + 1, err
		}
		if attempt == maxAttempts-1 {
			break
		}

		wait := e.BaseBackoff * time.Duration(1<<attempt)
		log.Printf("%s: rate limited, retrying in %s (attempt %d/%d)", op, wait, attempt+1, maxAttempts)
		metrics.Retries.Inc()
		if err := e.Sleep(ctx, wait); err != nil {
			return attempt + 1, &model.TimeoutError{Op: op, Err: err}
		}
	}

	metrics.RemoteErrors.WithLabelValues("rate_limited").Inc()
	return maxAttempts, &model.RateLimitedError{Attempts: maxAttempts, Message: rl.Message}
}

func countRemoteError(err error) {
	var (
		rl *model.RateLimitedError
		te *model.TimeoutError
	)
	switch {
	case errors.As(err, &rl):
		metrics.RemoteErrors.WithLabelValues("rate_limited").Inc()
	case errors.As(err, &te):
		metrics.RemoteErrors.WithLabelValues("timeout").Inc()
	default:
		metrics.RemoteErrors.WithLabelValues("remote").Inc()
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
