package resume

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/heroiclabs/nakama-common/runtime"

	"ludo/internal/ports"
)

const writeTimeout = 5 * time.Second

// AsyncWriter saves match rows off the match loop. Only the newest row per
// owner is kept; a failed write stays queued and is retried with the next
// submission or on Flush.
type AsyncWriter struct {
	store  ports.MatchStore
	logger runtime.Logger

	mu      sync.Mutex
	pending map[string]ports.MatchRow
	closed  bool

	writeMu sync.Mutex
	wake    chan struct{}
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewAsyncWriter starts the writer goroutine.
func NewAsyncWriter(store ports.MatchStore, logger runtime.Logger) *AsyncWriter {
	w := &AsyncWriter{
		store:   store,
		logger:  logger,
		pending: make(map[string]ports.MatchRow),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	w.wg.Add(1)
	go w.run()
	return w
}

// Submit queues row. It never blocks on the store.
func (w *AsyncWriter) Submit(row ports.MatchRow) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	if cur, ok := w.pending[row.OwnerID]; ok && cur.ID == row.ID && cur.Version > row.Version {
		w.mu.Unlock()
		return
	}
	w.pending[row.OwnerID] = row
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Pending is the number of queued rows.
func (w *AsyncWriter) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}

// Flush writes everything queued and reports the failures.
func (w *AsyncWriter) Flush(ctx context.Context) error {
	return w.drain(ctx)
}

// Close stops the writer after a final flush.
func (w *AsyncWriter) Close(ctx context.Context) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()

	close(w.done)
	w.wg.Wait()
	return w.drain(ctx)
}

func (w *AsyncWriter) run() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case <-w.wake:
			ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
			if err := w.drain(ctx); err != nil && w.logger != nil {
				w.logger.Error("ResumeWriter: %v", err)
			}
			cancel()
		}
	}
}

func (w *AsyncWriter) drain(ctx context.Context) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	w.mu.Lock()
	batch := make(map[string]ports.MatchRow, len(w.pending))
	for owner, row := range w.pending {
		batch[owner] = row
	}
	w.mu.Unlock()

	var errs []error
	for owner, row := range batch {
		if err := w.store.SaveMatch(ctx, row); err != nil && !errors.Is(err, ports.ErrStaleMatch) {
			errs = append(errs, err)
			continue
		}
		w.forget(owner, row)
	}
	return errors.Join(errs...)
}

// forget drops a written row unless a newer one replaced it meanwhile.
func (w *AsyncWriter) forget(owner string, row ports.MatchRow) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if cur, ok := w.pending[owner]; ok && cur.ID == row.ID && cur.Version == row.Version && cur.UpdatedAt.Equal(row.UpdatedAt) {
		delete(w.pending, owner)
	}
}
