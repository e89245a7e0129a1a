package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nekogravitycat/ground-booking-backend/internal/ground"
	"github.com/nekogravitycat/ground-booking-backend/internal/slot"
)

// ErrStale is returned by compare-and-set writes whose precondition no longer holds.
var ErrStale = errors.New("booking changed concurrently")

type Repository interface {
	// WithinGroundDate runs fn while holding the exclusive scope of one
	// ground+date pair. Writes made through tx commit or roll back together.
	WithinGroundDate(ctx context.Context, groundID string, date time.Time, fn func(ctx context.Context, tx Repository) error) error

	Insert(ctx context.Context, b *Booking) error
	GetByID(ctx context.Context, id string) (*Booking, error)
	ListByGroundAndDate(ctx context.Context, groundID string, date time.Time) ([]*Booking, error)
	// FindUnverifiedByEmail returns the most recent unverified booking for email.
	FindUnverifiedByEmail(ctx context.Context, email string) (*Booking, error)
	List(ctx context.Context, filter Filter) ([]*Booking, int, error)

	UpdateStatus(ctx context.Context, change StatusChange) (*Booking, error)
	// ExtendHold moves the hold expiry of a still-live unverified booking to until.
	ExtendHold(ctx context.Context, id string, now, until time.Time) (*Booking, error)
	// Delete removes the booking only if it is still in status.
	Delete(ctx context.Context, id string, status Status) error
	DeleteExpiredUnverified(ctx context.Context, now time.Time, scope Scope) ([]*Booking, error)

	// CountLive counts bookings on the ground that hold or may still hold
	// slots on today or later.
	CountLive(ctx context.Context, groundID string, now, today time.Time) (int, error)
	Stats(ctx context.Context, filter StatsFilter) (*Stats, error)
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type pgxRepository struct {
	pool *pgxpool.Pool // nil inside a transaction
	db   querier
}

func NewPgxRepository(pool *pgxpool.Pool) Repository {
	return &pgxRepository{pool: pool, db: pool}
}

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

var bookingColumns = []string{
	"b.id", "b.ground_id", "b.booking_date", "b.slots", "b.name", "b.email", "b.phone",
	"b.amount", "b.status", "b.rejection_reason", "b.hold_expires_at", "b.created_at", "b.updated_at",
}

// returning lists the same columns unqualified for RETURNING clauses.
const returning = "RETURNING id, ground_id, booking_date, slots, name, email, phone, amount, status, rejection_reason, hold_expires_at, created_at, updated_at"

func scanBooking(row pgx.Row, extra ...any) (*Booking, error) {
	var b Booking
	var slots []byte
	dest := []any{
		&b.ID, &b.GroundID, &b.Date, &slots, &b.Name, &b.Email, &b.Phone,
		&b.Amount, &b.Status, &b.RejectionReason, &b.HoldExpiresAt, &b.CreatedAt, &b.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(slots, &b.Slots); err != nil {
		return nil, fmt.Errorf("decode slots of booking %s: %w", b.ID, err)
	}
	return &b, nil
}

func collect(rows pgx.Rows) ([]*Booking, error) {
	defer rows.Close()
	var out []*Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking failed: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func lockKey(groundID string, date time.Time) string {
	return groundID + "|" + slot.FormatDate(date)
}

func (r *pgxRepository) WithinGroundDate(ctx context.Context, groundID string, date time.Time, fn func(ctx context.Context, tx Repository) error) error {
	if r.pool == nil {
		if err := r.lock(ctx, groundID, date); err != nil {
			return err
		}
		return fn(ctx, r)
	}

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		scoped := &pgxRepository{db: tx}
		if err := scoped.lock(ctx, groundID, date); err != nil {
			return err
		}
		return fn(ctx, scoped)
	})
}

// lock takes a transaction-scoped advisory lock, released on commit or rollback.
func (r *pgxRepository) lock(ctx context.Context, groundID string, date time.Time) error {
	if _, err := r.db.Exec(ctx, "SELECT pg_advisory_xact_lock(hashtextextended($1, 0))", lockKey(groundID, date)); err != nil {
		return fmt.Errorf("acquire ground date lock failed: %w", err)
	}
	return nil
}

func (r *pgxRepository) Insert(ctx context.Context, b *Booking) error {
	slots, err := json.Marshal(b.Slots)
	if err != nil {
		return fmt.Errorf("encode slots: %w", err)
	}

	var createdAt *time.Time
	if !b.CreatedAt.IsZero() {
		createdAt = &b.CreatedAt
	}

	query, args, err := psql.Insert("public.bookings").
		Columns("ground_id", "booking_date", "slots", "name", "email", "phone", "amount", "status", "rejection_reason", "hold_expires_at", "created_at").
		Values(b.GroundID, b.Date, squirrel.Expr("?::jsonb", string(slots)), b.Name, b.Email, b.Phone,
			b.Amount, b.Status, b.RejectionReason, b.HoldExpiresAt, squirrel.Expr("COALESCE(?::timestamptz, now())", createdAt)).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert booking query failed: %w", err)
	}

	if err := r.db.QueryRow(ctx, query, args...).Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			return ground.ErrNotFound
		}
		return fmt.Errorf("insert booking failed: %w", err)
	}
	return nil
}

func (r *pgxRepository) GetByID(ctx context.Context, id string) (*Booking, error) {
	query, args, err := psql.Select(bookingColumns...).
		From("public.bookings b").
		Where(squirrel.Eq{"b.id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get booking query failed: %w", err)
	}

	b, err := scanBooking(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get booking failed: %w", err)
	}
	return b, nil
}

func (r *pgxRepository) ListByGroundAndDate(ctx context.Context, groundID string, date time.Time) ([]*Booking, error) {
	query, args, err := psql.Select(bookingColumns...).
		From("public.bookings b").
		Where(squirrel.Eq{"b.ground_id": groundID, "b.booking_date": date}).
		OrderBy("b.created_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list ground bookings query failed: %w", err)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list ground bookings failed: %w", err)
	}
	return collect(rows)
}

func (r *pgxRepository) FindUnverifiedByEmail(ctx context.Context, email string) (*Booking, error) {
	query, args, err := psql.Select(bookingColumns...).
		From("public.bookings b").
		Where(squirrel.Eq{"b.email": email, "b.status": StatusUnverified}).
		OrderBy("b.created_at DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build find unverified booking query failed: %w", err)
	}

	b, err := scanBooking(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoUnverified
		}
		return nil, fmt.Errorf("find unverified booking failed: %w", err)
	}
	return b, nil
}

func (r *pgxRepository) List(ctx context.Context, filter Filter) ([]*Booking, int, error) {
	query := psql.Select(append(bookingColumns, "count(*) OVER() AS total_count")...).
		From("public.bookings b")

	if filter.OwnerID != "" {
		query = query.Join("public.grounds g ON g.id = b.ground_id").
			Where(squirrel.Eq{"g.owner_id": filter.OwnerID})
	}
	if filter.GroundID != "" {
		query = query.Where(squirrel.Eq{"b.ground_id": filter.GroundID})
	}
	if filter.Date != nil {
		query = query.Where(squirrel.Eq{"b.booking_date": *filter.Date})
	}
	if filter.Status != "" {
		query = query.Where(squirrel.Eq{"b.status": filter.Status})
	}
	if filter.Email != "" {
		query = query.Where(squirrel.Eq{"b.email": filter.Email})
	}

	// Sorting
	orderBy := "b.created_at"
	if filter.SortBy != "" {
		orderBy = "b." + filter.SortBy
	}
	orderDir := "DESC"
	if filter.SortOrder != "" {
		orderDir = filter.SortOrder
	}
	query = query.OrderBy(orderBy + " " + orderDir)

	// Pagination
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = 20
	}
	offset := (filter.Page - 1) * filter.PageSize
	query = query.Limit(uint64(filter.PageSize)).Offset(uint64(offset))

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build list bookings query failed: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list bookings failed: %w", err)
	}
	defer rows.Close()

	var bookings []*Booking
	var total int
	for rows.Next() {
		b, err := scanBooking(rows, &total)
		if err != nil {
			return nil, 0, fmt.Errorf("scan booking failed: %w", err)
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list bookings failed: %w", err)
	}
	return bookings, total, nil
}

func (r *pgxRepository) UpdateStatus(ctx context.Context, change StatusChange) (*Booking, error) {
	query := psql.Update("public.bookings").
		Set("status", change.To).
		Set("rejection_reason", change.Reason).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": change.ID, "status": change.From})

	// Leaving the unverified state drops the hold expiry.
	if change.To != StatusUnverified {
		query = query.Set("hold_expires_at", nil)
	}
	if change.LiveAt != nil {
		query = query.Where(squirrel.Gt{"hold_expires_at": *change.LiveAt})
	}

	sql, args, err := query.Suffix(returning).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build update booking status query failed: %w", err)
	}

	b, err := scanReturned(r.db.QueryRow(ctx, sql, args...))
	if err != nil {
		return nil, fmt.Errorf("update booking status failed: %w", err)
	}
	return b, nil
}

func (r *pgxRepository) ExtendHold(ctx context.Context, id string, now, until time.Time) (*Booking, error) {
	sql, args, err := psql.Update("public.bookings").
		Set("hold_expires_at", until).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": id, "status": StatusUnverified}).
		Where(squirrel.Gt{"hold_expires_at": now}).
		Suffix(returning).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build extend hold query failed: %w", err)
	}

	b, err := scanReturned(r.db.QueryRow(ctx, sql, args...))
	if err != nil {
		return nil, fmt.Errorf("extend hold failed: %w", err)
	}
	return b, nil
}

// scanReturned scans a RETURNING row, mapping "no row" to ErrStale.
func scanReturned(row pgx.Row) (*Booking, error) {
	b, err := scanBooking(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrStale
	}
	return b, err
}

func (r *pgxRepository) Delete(ctx context.Context, id string, status Status) error {
	query, args, err := psql.Delete("public.bookings").
		Where(squirrel.Eq{"id": id, "status": status}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete booking query failed: %w", err)
	}

	ct, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete booking failed: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrStale
	}
	return nil
}

func (r *pgxRepository) DeleteExpiredUnverified(ctx context.Context, now time.Time, scope Scope) ([]*Booking, error) {
	query := psql.Delete("public.bookings").
		Where(squirrel.Eq{"status": StatusUnverified}).
		Where(squirrel.LtOrEq{"hold_expires_at": now})

	if scope.GroundID != "" {
		query = query.Where(squirrel.Eq{"ground_id": scope.GroundID})
	}
	if !scope.Date.IsZero() {
		query = query.Where(squirrel.Eq{"booking_date": scope.Date})
	}

	sql, args, err := query.Suffix(returning).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build reclaim query failed: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("reclaim expired bookings failed: %w", err)
	}
	return collect(rows)
}

func (r *pgxRepository) CountLive(ctx context.Context, groundID string, now, today time.Time) (int, error) {
	sql, args, err := psql.Select("count(*)").
		From("public.bookings").
		Where(squirrel.Eq{"ground_id": groundID}).
		Where(squirrel.GtOrEq{"booking_date": today}).
		Where(squirrel.Or{
			squirrel.Eq{"status": []Status{StatusPending, StatusConfirmed}},
			squirrel.And{
				squirrel.Eq{"status": StatusUnverified},
				squirrel.Gt{"hold_expires_at": now},
			},
		}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count live bookings query failed: %w", err)
	}

	var n int
	if err := r.db.QueryRow(ctx, sql, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count live bookings failed: %w", err)
	}
	return n, nil
}

func (r *pgxRepository) Stats(ctx context.Context, filter StatsFilter) (*Stats, error) {
	query := psql.Select(
		"b.status",
		"count(*)",
		"coalesce(sum(b.amount), 0)::bigint",
		"coalesce(sum(jsonb_array_length(b.slots)), 0)::bigint",
	).
		From("public.bookings b").
		GroupBy("b.status")

	if filter.OwnerID != "" {
		query = query.Join("public.grounds g ON g.id = b.ground_id").
			Where(squirrel.Eq{"g.owner_id": filter.OwnerID})
	}
	if filter.GroundID != "" {
		query = query.Where(squirrel.Eq{"b.ground_id": filter.GroundID})
	}
	if filter.From != nil {
		query = query.Where(squirrel.GtOrEq{"b.booking_date": *filter.From})
	}
	if filter.To != nil {
		query = query.Where(squirrel.LtOrEq{"b.booking_date": *filter.To})
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build booking stats query failed: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("booking stats failed: %w", err)
	}
	defer rows.Close()

	stats := &Stats{ByStatus: make(map[Status]int)}
	for rows.Next() {
		var (
			status Status
			count  int
			amount int64
			hours  int
		)
		if err := rows.Scan(&status, &count, &amount, &hours); err != nil {
			return nil, fmt.Errorf("scan booking stats failed: %w", err)
		}
		stats.ByStatus[status] = count
		stats.Total += count
		if status == StatusConfirmed {
			stats.Revenue = amount
			stats.SlotHours = hours
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("booking stats failed: %w", err)
	}
	return stats, nil
}
