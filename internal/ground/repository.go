package ground

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository interface {
	Create(ctx context.Context, g *Ground) error
	GetByID(ctx context.Context, id string) (*Ground, error)
	List(ctx context.Context, filter Filter) ([]*Ground, int, error)
	Update(ctx context.Context, g *Ground) error
	Delete(ctx context.Context, id string) error
}

type pgxRepository struct {
	pool *pgxpool.Pool
}

func NewPgxRepository(pool *pgxpool.Pool) Repository {
	return &pgxRepository{pool: pool}
}

var groundColumns = []string{
	"id", "owner_id", "name", "sport", "location", "price_per_hour", "capacity",
	"availability", "features", "images", "created_at", "updated_at",
}

func scanGround(row pgx.Row, extra ...any) (*Ground, error) {
	var g Ground
	var availability []byte
	dest := []any{
		&g.ID, &g.OwnerID, &g.Name, &g.Sport, &g.Location, &g.PricePerHour, &g.Capacity,
		&availability, &g.Features, &g.Images, &g.CreatedAt, &g.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(availability, &g.Availability); err != nil {
		return nil, fmt.Errorf("decode availability of ground %s: %w", g.ID, err)
	}
	return &g, nil
}

func encodeAvailability(g *Ground) (string, error) {
	b, err := json.Marshal(g.Availability)
	if err != nil {
		return "", fmt.Errorf("encode availability: %w", err)
	}
	return string(b), nil
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

func (r *pgxRepository) Create(ctx context.Context, g *Ground) error {
	availability, err := encodeAvailability(g)
	if err != nil {
		return err
	}

	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Insert("public.grounds").
		Columns("owner_id", "name", "sport", "location", "price_per_hour", "capacity", "availability", "features", "images").
		Values(g.OwnerID, g.Name, g.Sport, g.Location, g.PricePerHour, g.Capacity,
			squirrel.Expr("?::jsonb", availability), nonNil(g.Features), nonNil(g.Images)).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build create ground query failed: %w", err)
	}

	if err := r.pool.QueryRow(ctx, query, args...).Scan(&g.ID, &g.CreatedAt, &g.UpdatedAt); err != nil {
		return fmt.Errorf("create ground failed: %w", err)
	}
	return nil
}

func (r *pgxRepository) GetByID(ctx context.Context, id string) (*Ground, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Select(groundColumns...).
		From("public.grounds").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get ground query failed: %w", err)
	}

	g, err := scanGround(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get ground failed: %w", err)
	}
	return g, nil
}

func (r *pgxRepository) List(ctx context.Context, filter Filter) ([]*Ground, int, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query := psql.Select(append(groundColumns, "count(*) OVER() AS total_count")...).
		From("public.grounds")

	if filter.OwnerID != "" {
		query = query.Where(squirrel.Eq{"owner_id": filter.OwnerID})
	}
	if filter.Sport != "" {
		query = query.Where(squirrel.Eq{"sport": filter.Sport})
	}
	if filter.Keyword != "" {
		kw := "%" + filter.Keyword + "%"
		query = query.Where(squirrel.Or{
			squirrel.ILike{"name": kw},
			squirrel.ILike{"location": kw},
		})
	}

	orderBy := "created_at"
	if filter.SortBy != "" {
		orderBy = filter.SortBy
	}
	orderDir := "DESC"
	if filter.SortOrder != "" {
		orderDir = filter.SortOrder
	}
	query = query.OrderBy(orderBy + " " + orderDir)

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
		return nil, 0, fmt.Errorf("build list grounds query failed: %w", err)
	}

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list grounds failed: %w", err)
	}
	defer rows.Close()

	var grounds []*Ground
	var total int
	for rows.Next() {
		g, err := scanGround(rows, &total)
		if err != nil {
			return nil, 0, fmt.Errorf("scan ground failed: %w", err)
		}
		grounds = append(grounds, g)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate grounds failed: %w", err)
	}

	return grounds, total, nil
}

func (r *pgxRepository) Update(ctx context.Context, g *Ground) error {
	availability, err := encodeAvailability(g)
	if err != nil {
		return err
	}

	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Update("public.grounds").
		Set("name", g.Name).
		Set("sport", g.Sport).
		Set("location", g.Location).
		Set("price_per_hour", g.PricePerHour).
		Set("capacity", g.Capacity).
		Set("availability", squirrel.Expr("?::jsonb", availability)).
		Set("features", nonNil(g.Features)).
		Set("images", nonNil(g.Images)).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": g.ID}).
		Suffix("RETURNING updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build update ground query failed: %w", err)
	}

	if err := r.pool.QueryRow(ctx, query, args...).Scan(&g.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("update ground failed: %w", err)
	}
	return nil
}

func (r *pgxRepository) Delete(ctx context.Context, id string) error {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Delete("public.grounds").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete ground query failed: %w", err)
	}

	ct, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete ground failed: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
