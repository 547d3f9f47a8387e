package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Domenick1991/slotbot/internal/domain"
	_ "modernc.org/sqlite"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS bookings (
		id             INTEGER PRIMARY KEY AUTOINCREMENT,
		requester_id   INTEGER NOT NULL,
		requester_name TEXT    NOT NULL DEFAULT '',
		booking_date   TEXT    NOT NULL,
		start_minute   INTEGER NOT NULL,
		end_minute     INTEGER NOT NULL,
		status         TEXT    NOT NULL DEFAULT 'pending',
		created_at     INTEGER NOT NULL,
		confirmed_at   INTEGER,
		cancelled_at   INTEGER,
		completed_at   INTEGER,
		cancelled_by   TEXT    NOT NULL DEFAULT '',
		cancel_reason  TEXT    NOT NULL DEFAULT '',
		reminder_sent  INTEGER NOT NULL DEFAULT 0,
		group_notified INTEGER NOT NULL DEFAULT 0,
		CHECK (start_minute < end_minute)
	)`,
	`CREATE TABLE IF NOT EXISTS booking_events (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		booking_id  INTEGER NOT NULL REFERENCES bookings(id),
		event_type  TEXT    NOT NULL,
		actor_label TEXT    NOT NULL,
		actor_id    INTEGER,
		note        TEXT    NOT NULL DEFAULT '',
		event_at    INTEGER NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_one_active_booking_per_day
		ON bookings (requester_id, booking_date) WHERE status IN ('pending', 'confirmed')`,
	`CREATE INDEX IF NOT EXISTS idx_bookings_date_status ON bookings (booking_date, status)`,
	`CREATE INDEX IF NOT EXISTS idx_bookings_requester ON bookings (requester_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_events_booking ON booking_events (booking_id, event_at)`,
}

// SQLiteBookingRepository keeps bookings in an embedded SQLite database. The
// pool holds a single connection, so every transaction is serialized.
type SQLiteBookingRepository struct {
	db *sql.DB
}

// OpenSQLite opens path (":memory:" for a private in-memory database) and applies the schema.
func OpenSQLite(ctx context.Context, path string) (*SQLiteBookingRepository, error) {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	dsn := path + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	repo := NewSQLiteBookingRepository(db)
	if err := repo.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return repo, nil
}

func NewSQLiteBookingRepository(db *sql.DB) *SQLiteBookingRepository {
	return &SQLiteBookingRepository{db: db}
}

func (r *SQLiteBookingRepository) Close() error {
	return r.db.Close()
}

func (r *SQLiteBookingRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteBookingRepository) Migrate(ctx context.Context) error {
	for _, stmt := range sqliteSchema {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (r *SQLiteBookingRepository) Create(ctx context.Context, booking *domain.Booking, event domain.BookingEvent) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Unavailable(err)
	}
	defer tx.Rollback()

	var own int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM bookings WHERE requester_id=? AND booking_date=? AND status IN (?, ?)`,
		booking.RequesterID, booking.Date, domain.BookingStatusPending, domain.BookingStatusConfirmed).Scan(&own); err != nil {
		return domain.Unavailable(err)
	}
	if own > 0 {
		return domain.NewValidationError(reasonDuplicateActive)
	}

	overlapping, err := sqliteCountOverlapping(ctx, tx, booking.Date, booking.Interval(), 0)
	if err != nil {
		return domain.Unavailable(err)
	}
	if overlapping > 0 {
		return domain.NewValidationError(reasonSlotTaken)
	}

	booking.Status = domain.BookingStatusPending
	res, err := tx.ExecContext(ctx, `INSERT INTO bookings (requester_id, requester_name, booking_date, start_minute, end_minute, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`, booking.RequesterID, booking.RequesterName, booking.Date, int(booking.Start), int(booking.End),
		string(booking.Status), booking.CreatedAt.UnixMicro())
	if err != nil {
		if isSQLiteUniqueViolation(err) {
			return domain.NewValidationError(reasonDuplicateActive)
		}
		return domain.Unavailable(err)
	}
	if booking.ID, err = res.LastInsertId(); err != nil {
		return domain.Unavailable(err)
	}

	event.BookingID = booking.ID
	if err := sqliteInsertEvent(ctx, tx, &event); err != nil {
		return domain.Unavailable(err)
	}
	if err := tx.Commit(); err != nil {
		return domain.Unavailable(err)
	}
	booking.CreatedAt = fromMicro(booking.CreatedAt.UnixMicro())
	return nil
}

func (r *SQLiteBookingRepository) GetByID(ctx context.Context, id int64) (*domain.Booking, error) {
	b, err := sqliteScanBooking(r.db.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id=?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.Unavailable(err)
	}
	return b, nil
}

func (r *SQLiteBookingRepository) ListActiveByRequester(ctx context.Context, requesterID int64, dates []string) ([]domain.Booking, error) {
	if len(dates) == 0 {
		return nil, nil
	}
	args := []any{requesterID}
	for _, d := range dates {
		args = append(args, d)
	}
	args = append(args, string(domain.BookingStatusPending), string(domain.BookingStatusConfirmed))
	return r.list(ctx, `SELECT `+bookingColumns+` FROM bookings
		WHERE requester_id=? AND booking_date IN (`+placeholders(len(dates))+`) AND status IN (?, ?)
		ORDER BY booking_date, start_minute`, args...)
}

func (r *SQLiteBookingRepository) ListActiveByDates(ctx context.Context, dates []string) ([]domain.Booking, error) {
	if len(dates) == 0 {
		return nil, nil
	}
	args := make([]any, 0, len(dates)+2)
	for _, d := range dates {
		args = append(args, d)
	}
	args = append(args, string(domain.BookingStatusPending), string(domain.BookingStatusConfirmed))
	return r.list(ctx, `SELECT `+bookingColumns+` FROM bookings
		WHERE booking_date IN (`+placeholders(len(dates))+`) AND status IN (?, ?)
		ORDER BY booking_date, start_minute`, args...)
}

func (r *SQLiteBookingRepository) CountOverlapping(ctx context.Context, date string, interval domain.Interval, excludeID int64) (int, error) {
	n, err := sqliteCountOverlapping(ctx, r.db, date, interval, excludeID)
	if err != nil {
		return 0, domain.Unavailable(err)
	}
	return n, nil
}

func (r *SQLiteBookingRepository) ApplyTransition(ctx context.Context, id int64, tr domain.Transition) (*domain.Booking, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, domain.Unavailable(err)
	}
	defer tx.Rollback()

	b, err := sqliteScanBooking(tx.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id=?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.Unavailable(err)
	}
	if err := applyTransition(b, tr); err != nil {
		return b, err
	}

	if _, err := tx.ExecContext(ctx, `UPDATE bookings
		SET status=?, confirmed_at=?, cancelled_at=?, completed_at=?, cancelled_by=?, cancel_reason=?
		WHERE id=?`, string(b.Status), toMicro(b.ConfirmedAt), toMicro(b.CancelledAt), toMicro(b.CompletedAt),
		b.CancelledBy, b.CancelReason, b.ID); err != nil {
		return nil, domain.Unavailable(err)
	}

	event := tr.Event
	event.BookingID = b.ID
	if err := sqliteInsertEvent(ctx, tx, &event); err != nil {
		return nil, domain.Unavailable(err)
	}
	if err := tx.Commit(); err != nil {
		return nil, domain.Unavailable(err)
	}
	return b, nil
}

func (r *SQLiteBookingRepository) MarkReminderSent(ctx context.Context, id int64, event domain.BookingEvent) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, domain.Unavailable(err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE bookings SET reminder_sent = 1
		WHERE id=? AND reminder_sent = 0 AND status=?`, id, string(domain.BookingStatusPending))
	if err != nil {
		return false, domain.Unavailable(err)
	}
	if n, err := res.RowsAffected(); err != nil || n == 0 {
		return false, domain.Unavailable(err)
	}

	event.BookingID = id
	if err := sqliteInsertEvent(ctx, tx, &event); err != nil {
		return false, domain.Unavailable(err)
	}
	if err := tx.Commit(); err != nil {
		return false, domain.Unavailable(err)
	}
	return true, nil
}

func (r *SQLiteBookingRepository) MarkGroupNotified(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE bookings SET group_notified = 1 WHERE id=? AND group_notified = 0`, id)
	if err != nil {
		return false, domain.Unavailable(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, domain.Unavailable(err)
	}
	return n > 0, nil
}

func (r *SQLiteBookingRepository) Scan(ctx context.Context, filter ScanFilter) ([]domain.Booking, error) {
	query, args := buildScan(filter, func(int) string { return "?" })
	return r.list(ctx, query, args...)
}

func (r *SQLiteBookingRepository) ListByRequester(ctx context.Context, requesterID int64, limit int) ([]domain.Booking, error) {
	return r.list(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE requester_id=? ORDER BY created_at DESC, id DESC LIMIT ?`, requesterID, limit)
}

func (r *SQLiteBookingRepository) ListRecent(ctx context.Context, limit int) ([]domain.Booking, error) {
	return r.list(ctx, `SELECT `+bookingColumns+` FROM bookings ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
}

func (r *SQLiteBookingRepository) ListEvents(ctx context.Context, bookingID int64) ([]domain.BookingEvent, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, booking_id, event_type, actor_label, actor_id, note, event_at
		FROM booking_events WHERE booking_id=? ORDER BY event_at, id`, bookingID)
	if err != nil {
		return nil, domain.Unavailable(err)
	}
	defer rows.Close()

	var events []domain.BookingEvent
	for rows.Next() {
		var (
			e       domain.BookingEvent
			kind    string
			role    string
			actorID sql.NullInt64
			at      int64
		)
		if err := rows.Scan(&e.ID, &e.BookingID, &kind, &role, &actorID, &e.Note, &at); err != nil {
			return nil, domain.Unavailable(err)
		}
		e.Kind, e.ActorRole, e.At = domain.EventKind(kind), domain.ActorRole(role), fromMicro(at)
		if actorID.Valid {
			id := actorID.Int64
			e.ActorID = &id
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Unavailable(err)
	}
	return events, nil
}

func (r *SQLiteBookingRepository) list(ctx context.Context, query string, args ...any) ([]domain.Booking, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, domain.Unavailable(err)
	}
	defer rows.Close()

	var bookings []domain.Booking
	for rows.Next() {
		b, err := sqliteScanBooking(rows)
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

type sqliteQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func sqliteCountOverlapping(ctx context.Context, q sqliteQuerier, date string, interval domain.Interval, excludeID int64) (int, error) {
	var n int
	err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM bookings
		WHERE booking_date=? AND status IN (?, ?)
		  AND NOT (end_minute <= ? OR start_minute >= ?)
		  AND id <> ?`, date, string(domain.BookingStatusPending), string(domain.BookingStatusConfirmed),
		int(interval.Start), int(interval.End), excludeID).Scan(&n)
	return n, err
}

func sqliteInsertEvent(ctx context.Context, tx *sql.Tx, event *domain.BookingEvent) error {
	var last sql.NullInt64
	if err := tx.QueryRowContext(ctx, `SELECT MAX(event_at) FROM booking_events WHERE booking_id=?`, event.BookingID).Scan(&last); err != nil {
		return err
	}
	var prev *time.Time
	if last.Valid {
		t := fromMicro(last.Int64)
		prev = &t
	}
	event.At = nextEventAt(prev, event.At)

	var actorID any
	if event.ActorID != nil {
		actorID = *event.ActorID
	}
	res, err := tx.ExecContext(ctx, `INSERT INTO booking_events (booking_id, event_type, actor_label, actor_id, note, event_at)
		VALUES (?, ?, ?, ?, ?, ?)`, event.BookingID, string(event.Kind), string(event.ActorRole), actorID, event.Note, event.At.UnixMicro())
	if err != nil {
		return err
	}
	event.ID, err = res.LastInsertId()
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func sqliteScanBooking(row rowScanner) (*domain.Booking, error) {
	var (
		b                                  domain.Booking
		start, end                         int
		status                             string
		createdAt                          int64
		confirmedAt, cancelledAt, complete sql.NullInt64
	)
	if err := row.Scan(&b.ID, &b.RequesterID, &b.RequesterName, &b.Date, &start, &end, &status,
		&createdAt, &confirmedAt, &cancelledAt, &complete, &b.CancelledBy, &b.CancelReason,
		&b.ReminderSent, &b.GroupNotified); err != nil {
		return nil, err
	}
	b.Start, b.End, b.Status = domain.TimeOfDay(start), domain.TimeOfDay(end), domain.BookingStatus(status)
	b.CreatedAt = fromMicro(createdAt)
	b.ConfirmedAt = nullMicro(confirmedAt)
	b.CancelledAt = nullMicro(cancelledAt)
	b.CompletedAt = nullMicro(complete)
	return &b, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func fromMicro(v int64) time.Time {
	return time.UnixMicro(v).UTC()
}

func nullMicro(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := fromMicro(v.Int64)
	return &t
}

func toMicro(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixMicro()
}

var _ BookingRepository = (*SQLiteBookingRepository)(nil)
