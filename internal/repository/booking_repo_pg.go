package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Domenick1991/slotbot/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var pgSchema = []string{
	`CREATE TABLE IF NOT EXISTS bookings (
		id             BIGSERIAL PRIMARY KEY,
		requester_id   BIGINT      NOT NULL,
		requester_name TEXT        NOT NULL DEFAULT '',
		booking_date   TEXT        NOT NULL,
		start_minute   INTEGER     NOT NULL,
		end_minute     INTEGER     NOT NULL,
		status         TEXT        NOT NULL DEFAULT 'pending',
		created_at     TIMESTAMPTZ NOT NULL,
		confirmed_at   TIMESTAMPTZ,
		cancelled_at   TIMESTAMPTZ,
		completed_at   TIMESTAMPTZ,
		cancelled_by   TEXT        NOT NULL DEFAULT '',
		cancel_reason  TEXT        NOT NULL DEFAULT '',
		reminder_sent  BOOLEAN     NOT NULL DEFAULT FALSE,
		group_notified BOOLEAN     NOT NULL DEFAULT FALSE,
		CHECK (start_minute < end_minute)
	)`,
	`CREATE TABLE IF NOT EXISTS booking_events (
		id          BIGSERIAL PRIMARY KEY,
		booking_id  BIGINT      NOT NULL REFERENCES bookings(id),
		event_type  TEXT        NOT NULL,
		actor_label TEXT        NOT NULL,
		actor_id    BIGINT,
		note        TEXT        NOT NULL DEFAULT '',
		event_at    TIMESTAMPTZ NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_one_active_booking_per_day
		ON bookings (requester_id, booking_date) WHERE status IN ('pending', 'confirmed')`,
	`CREATE INDEX IF NOT EXISTS idx_bookings_date_status ON bookings (booking_date, status)`,
	`CREATE INDEX IF NOT EXISTS idx_bookings_requester ON bookings (requester_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_events_booking ON booking_events (booking_id, event_at)`,
}

type PGBookingRepository struct {
	db *pgxpool.Pool
}

func NewBookingRepository(db *pgxpool.Pool) *PGBookingRepository {
	return &PGBookingRepository{db: db}
}

func (r *PGBookingRepository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

func (r *PGBookingRepository) Migrate(ctx context.Context) error {
	for _, stmt := range pgSchema {
		if _, err := r.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (r *PGBookingRepository) Create(ctx context.Context, booking *domain.Booking, event domain.BookingEvent) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.Unavailable(err)
	}
	defer tx.Rollback(ctx)

	// writers for one date queue up here, so the checks below see every committed booking
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, booking.Date); err != nil {
		return domain.Unavailable(err)
	}

	var own int
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM bookings WHERE requester_id=$1 AND booking_date=$2 AND status = ANY($3)`,
		booking.RequesterID, booking.Date, activeStatusList()).Scan(&own); err != nil {
		return domain.Unavailable(err)
	}
	if own > 0 {
		return domain.NewValidationError(reasonDuplicateActive)
	}

	overlapping, err := pgCountOverlapping(ctx, tx, booking.Date, booking.Interval(), 0)
	if err != nil {
		return domain.Unavailable(err)
	}
	if overlapping > 0 {
		return domain.NewValidationError(reasonSlotTaken)
	}

	booking.Status = domain.BookingStatusPending
	if err := tx.QueryRow(ctx, `INSERT INTO bookings (requester_id, requester_name, booking_date, start_minute, end_minute, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`, booking.RequesterID, booking.RequesterName, booking.Date, int(booking.Start), int(booking.End), booking.Status, booking.CreatedAt).
		Scan(&booking.ID); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.NewValidationError(reasonDuplicateActive)
		}
		return domain.Unavailable(err)
	}

	event.BookingID = booking.ID
	if err := pgInsertEvent(ctx, tx, &event); err != nil {
		return domain.Unavailable(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Unavailable(err)
	}
	return nil
}

func (r *PGBookingRepository) GetByID(ctx context.Context, id int64) (*domain.Booking, error) {
	b, err := pgScanBooking(r.db.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.Unavailable(err)
	}
	return b, nil
}

func (r *PGBookingRepository) ListActiveByRequester(ctx context.Context, requesterID int64, dates []string) ([]domain.Booking, error) {
	return r.list(ctx, `SELECT `+bookingColumns+` FROM bookings
		WHERE requester_id=$1 AND booking_date = ANY($2) AND status = ANY($3)
		ORDER BY booking_date, start_minute`, requesterID, dates, activeStatusList())
}

func (r *PGBookingRepository) ListActiveByDates(ctx context.Context, dates []string) ([]domain.Booking, error) {
	return r.list(ctx, `SELECT `+bookingColumns+` FROM bookings
		WHERE booking_date = ANY($1) AND status = ANY($2)
		ORDER BY booking_date, start_minute`, dates, activeStatusList())
}

func (r *PGBookingRepository) CountOverlapping(ctx context.Context, date string, interval domain.Interval, excludeID int64) (int, error) {
	n, err := pgCountOverlapping(ctx, r.db, date, interval, excludeID)
	if err != nil {
		return 0, domain.Unavailable(err)
	}
	return n, nil
}

func (r *PGBookingRepository) ApplyTransition(ctx context.Context, id int64, tr domain.Transition) (*domain.Booking, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, domain.Unavailable(err)
	}
	defer tx.Rollback(ctx)

	b, err := pgScanBooking(tx.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.Unavailable(err)
	}
	if err := applyTransition(b, tr); err != nil {
		return b, err
	}

	if _, err := tx.Exec(ctx, `UPDATE bookings
		SET status=$2, confirmed_at=$3, cancelled_at=$4, completed_at=$5, cancelled_by=$6, cancel_reason=$7
		WHERE id=$1`, b.ID, b.Status, b.ConfirmedAt, b.CancelledAt, b.CompletedAt, b.CancelledBy, b.CancelReason); err != nil {
		return nil, domain.Unavailable(err)
	}

	event := tr.Event
	event.BookingID = b.ID
	if err := pgInsertEvent(ctx, tx, &event); err != nil {
		return nil, domain.Unavailable(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, domain.Unavailable(err)
	}
	return b, nil
}

func (r *PGBookingRepository) MarkReminderSent(ctx context.Context, id int64, event domain.BookingEvent) (bool, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, domain.Unavailable(err)
	}
	defer tx.Rollback(ctx)

	cmd, err := tx.Exec(ctx, `UPDATE bookings SET reminder_sent = TRUE
		WHERE id=$1 AND reminder_sent = FALSE AND status=$2`, id, domain.BookingStatusPending)
	if err != nil {
		return false, domain.Unavailable(err)
	}
	if cmd.RowsAffected() == 0 {
		return false, nil
	}

	event.BookingID = id
	if err := pgInsertEvent(ctx, tx, &event); err != nil {
		return false, domain.Unavailable(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return false, domain.Unavailable(err)
	}
	return true, nil
}

func (r *PGBookingRepository) MarkGroupNotified(ctx context.Context, id int64) (bool, error) {
	cmd, err := r.db.Exec(ctx, `UPDATE bookings SET group_notified = TRUE WHERE id=$1 AND group_notified = FALSE`, id)
	if err != nil {
		return false, domain.Unavailable(err)
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *PGBookingRepository) Scan(ctx context.Context, filter ScanFilter) ([]domain.Booking, error) {
	query, args := buildScan(filter, func(n int) string { return fmt.Sprintf("$%d", n) })
	return r.list(ctx, query, args...)
}

func (r *PGBookingRepository) ListByRequester(ctx context.Context, requesterID int64, limit int) ([]domain.Booking, error) {
	return r.list(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE requester_id=$1 ORDER BY created_at DESC, id DESC LIMIT $2`, requesterID, limit)
}

func (r *PGBookingRepository) ListRecent(ctx context.Context, limit int) ([]domain.Booking, error) {
	return r.list(ctx, `SELECT `+bookingColumns+` FROM bookings ORDER BY created_at DESC, id DESC LIMIT $1`, limit)
}

func (r *PGBookingRepository) ListEvents(ctx context.Context, bookingID int64) ([]domain.BookingEvent, error) {
	rows, err := r.db.Query(ctx, `SELECT id, booking_id, event_type, actor_label, actor_id, note, event_at
		FROM booking_events WHERE booking_id=$1 ORDER BY event_at, id`, bookingID)
	if err != nil {
		return nil, domain.Unavailable(err)
	}
	defer rows.Close()

	var events []domain.BookingEvent
	for rows.Next() {
		var e domain.BookingEvent
		if err := rows.Scan(&e.ID, &e.BookingID, &e.Kind, &e.ActorRole, &e.ActorID, &e.Note, &e.At); err != nil {
			return nil, domain.Unavailable(err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Unavailable(err)
	}
	return events, nil
}

func (r *PGBookingRepository) list(ctx context.Context, query string, args ...any) ([]domain.Booking, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, domain.Unavailable(err)
	}
	defer rows.Close()

	var bookings []domain.Booking
	for rows.Next() {
		b, err := pgScanBooking(rows)
		if err != nil {
			return nil, domain.Unavailable(err)
		}
		bookings = append(bookings, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Unavailable(err)
	}
	return bookings, nil
}

type pgQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func pgCountOverlapping(ctx context.Context, q pgQuerier, date string, interval domain.Interval, excludeID int64) (int, error) {
	var n int
	err := q.QueryRow(ctx, `SELECT COUNT(*) FROM bookings
		WHERE booking_date=$1 AND status = ANY($2)
		  AND NOT (end_minute <= $3 OR start_minute >= $4)
		  AND id <> $5`, date, activeStatusList(), int(interval.Start), int(interval.End), excludeID).Scan(&n)
	return n, err
}

func pgInsertEvent(ctx context.Context, tx pgx.Tx, event *domain.BookingEvent) error {
	var last *time.Time
	if err := tx.QueryRow(ctx, `SELECT MAX(event_at) FROM booking_events WHERE booking_id=$1`, event.BookingID).Scan(&last); err != nil {
		return err
	}
	event.At = nextEventAt(last, event.At)
	return tx.QueryRow(ctx, `INSERT INTO booking_events (booking_id, event_type, actor_label, actor_id, note, event_at)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		event.BookingID, event.Kind, event.ActorRole, event.ActorID, event.Note, event.At).Scan(&event.ID)
}

func pgScanBooking(row pgx.Row) (*domain.Booking, error) {
	var (
		b          domain.Booking
		start, end int
	)
	if err := row.Scan(&b.ID, &b.RequesterID, &b.RequesterName, &b.Date, &start, &end, &b.Status,
		&b.CreatedAt, &b.ConfirmedAt, &b.CancelledAt, &b.CompletedAt, &b.CancelledBy, &b.CancelReason,
		&b.ReminderSent, &b.GroupNotified); err != nil {
		return nil, err
	}
	b.Start, b.End = domain.TimeOfDay(start), domain.TimeOfDay(end)
	return &b, nil
}

var _ BookingRepository = (*PGBookingRepository)(nil)
