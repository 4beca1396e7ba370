package postgres

import (
	"context"
	"time"

	"ridelink/internal/general/contracts"
	"ridelink/internal/general/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

const historyBuffer = 1024

// HistoryArchiver persists driver location updates off the hot path.
// Archive never blocks the dispatch loop: records go through a bounded
// buffer and a record is dropped when the buffer is full.
type HistoryArchiver struct {
	pool   *pgxpool.Pool
	logger *logger.Logger
	buf    chan contracts.ArchivedLocation
	done   chan struct{}
}

func NewHistoryArchiver(pool *pgxpool.Pool, log *logger.Logger) *HistoryArchiver {
	return &HistoryArchiver{
		pool:   pool,
		logger: log,
		buf:    make(chan contracts.ArchivedLocation, historyBuffer),
		done:   make(chan struct{}),
	}
}

// Start launches the insert worker; it drains the buffer until ctx is
// cancelled, then flushes what is already queued.
func (a *HistoryArchiver) Start(ctx context.Context) {
	go func() {
		defer close(a.done)
		for {
			select {
			case <-ctx.Done():
				a.flush()
				return
			case rec := <-a.buf:
				a.insert(context.WithoutCancel(ctx), rec)
			}
		}
	}()
}

// Archive enqueues one record; drops it if the worker is behind.
func (a *HistoryArchiver) Archive(rec contracts.ArchivedLocation) {
	select {
	case a.buf <- rec:
	default:
		a.logger.Warn(context.Background(), "history_buffer_full",
			"Location history buffer full, dropping record",
			map[string]any{"driver_id": rec.DriverID})
	}
}

// Wait blocks until the worker has exited after cancellation.
func (a *HistoryArchiver) Wait() {
	<-a.done
}

func (a *HistoryArchiver) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		select {
		case rec := <-a.buf:
			a.insert(ctx, rec)
		default:
			return
		}
	}
}

func (a *HistoryArchiver) insert(ctx context.Context, rec contracts.ArchivedLocation) {
	insertCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var recordedAt any
	if !rec.RecordedAt.IsZero() {
		recordedAt = rec.RecordedAt
	}

	_, err := a.pool.Exec(insertCtx, `
		INSERT INTO location_history (
			driver_id, latitude, longitude, accuracy_meters, recorded_at
		)
		VALUES ($1, $2, $3, $4, COALESCE($5, now()))
	`,
		rec.DriverID,
		rec.Latitude,
		rec.Longitude,
		rec.AccuracyMeters,
		recordedAt,
	)
	if err != nil {
		a.logger.Error(ctx, "history_insert_failed", "Failed to insert location history row", err,
			map[string]any{"driver_id": rec.DriverID})
	}
}
