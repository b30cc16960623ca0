package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rpattn/advfilters/internal/db"
	"github.com/rpattn/advfilters/internal/domain"
	"github.com/rpattn/advfilters/internal/sqlgen"
)

const filterColumns = `f.id, f.title, f.entity_type, CAST(f.criteria AS TEXT), CAST(f.predicate AS TEXT), f.owner_id, f.is_public, f.created_at, f.updated_at`

// filterSpecRepository implements FilterSpecRepository over database/sql
type filterSpecRepository struct {
	db      *sql.DB
	dialect db.Dialect
}

// NewFilterSpecRepository creates a repository on an open connection
func NewFilterSpecRepository(conn *sql.DB, dialect db.Dialect) FilterSpecRepository {
	return &filterSpecRepository{db: conn, dialect: dialect}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFilterSpec(row rowScanner) (domain.FilterSpec, error) {
	var (
		spec      domain.FilterSpec
		criteria  string
		predicate string
	)
	if err := row.Scan(&spec.ID, &spec.Title, &spec.EntityType, &criteria, &predicate,
		&spec.OwnerID, &spec.IsPublic, &spec.CreatedAt, &spec.UpdatedAt); err != nil {
		return domain.FilterSpec{}, err
	}

	set, err := domain.CriteriaFromJSON(json.RawMessage(criteria))
	if err != nil {
		return domain.FilterSpec{}, fmt.Errorf("failed to decode criteria of filter %s: %w", spec.ID, err)
	}
	p, err := domain.PredicateFromJSON(json.RawMessage(predicate))
	if err != nil {
		return domain.FilterSpec{}, fmt.Errorf("failed to decode predicate of filter %s: %w", spec.ID, err)
	}
	spec.Criteria = set
	spec.Predicate = p
	spec.CreatedAt = spec.CreatedAt.UTC()
	spec.UpdatedAt = spec.UpdatedAt.UTC()
	return spec, nil
}

func encodeFilterSpec(spec domain.FilterSpec) (criteria, predicate string, err error) {
	rawCriteria, err := domain.CriteriaToJSON(spec.Criteria)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode criteria: %w", err)
	}
	rawPredicate, err := domain.PredicateToJSON(spec.Predicate)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode predicate: %w", err)
	}
	return string(rawCriteria), string(rawPredicate), nil
}

// Create inserts the spec and its share list
func (r *filterSpecRepository) Create(ctx context.Context, spec domain.FilterSpec) (domain.FilterSpec, error) {
	criteria, predicate, err := encodeFilterSpec(spec)
	if err != nil {
		return domain.FilterSpec{}, err
	}

	err = db.WithTx(ctx, r.db, nil, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO advanced_filters
			(id, title, entity_type, criteria, predicate, owner_id, is_public, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			spec.ID, spec.Title, spec.EntityType, criteria, predicate,
			spec.OwnerID, spec.IsPublic, spec.CreatedAt, spec.UpdatedAt)
		if err != nil {
			return db.Classify("insert filter", err)
		}
		return insertShares(ctx, tx, spec.ID, spec.SharedWith)
	})
	if err != nil {
		return domain.FilterSpec{}, fmt.Errorf("failed to create filter: %w", err)
	}
	return spec, nil
}

// GetByID loads one spec with its share list
func (r *filterSpecRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.FilterSpec, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+filterColumns+` FROM advanced_filters f WHERE f.id = $1`, id)
	spec, err := scanFilterSpec(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.FilterSpec{}, fmt.Errorf("filter %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.FilterSpec{}, db.Classify("get filter", err)
	}

	shares, err := r.ListShares(ctx, []uuid.UUID{id})
	if err != nil {
		return domain.FilterSpec{}, err
	}
	spec.SharedWith = shares[id]
	return spec, nil
}

// ListVisible applies owner OR public OR shared
func (r *filterSpecRepository) ListVisible(ctx context.Context, user string, entityType string) ([]domain.FilterSpec, error) {
	b := sqlgen.NewBuilder()
	userArg := b.Arg(user)

	where := []string{fmt.Sprintf(`(f.owner_id = %[1]s OR f.is_public OR EXISTS (
		SELECT 1 FROM advanced_filter_users u WHERE u.filter_id = f.id AND u.user_id = %[1]s))`, userArg)}
	if entityType != "" {
		where = append(where, "f.entity_type = "+b.Arg(entityType))
	}

	query := fmt.Sprintf(`SELECT %s FROM advanced_filters f WHERE %s
		ORDER BY CASE WHEN f.owner_id = %s THEN 0 ELSE 1 END, f.created_at, f.id`,
		filterColumns, strings.Join(where, " AND "), userArg)

	rows, err := r.db.QueryContext(ctx, query, b.Args()...)
	if err != nil {
		return nil, db.Classify("list filters", err)
	}
	defer rows.Close()

	specs := make([]domain.FilterSpec, 0)
	for rows.Next() {
		spec, err := scanFilterSpec(rows)
		if err != nil {
			return nil, db.Classify("scan filter", err)
		}
		specs = append(specs, spec)
	}
	if err := rows.Err(); err != nil {
		return nil, db.Classify("list filters", err)
	}
	return specs, nil
}

// ListShares loads share lists for a batch of filters in one query
func (r *filterSpecRepository) ListShares(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID][]string, error) {
	out := make(map[uuid.UUID][]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	b := sqlgen.NewBuilder()
	placeholders := make([]string, 0, len(ids))
	for _, id := range ids {
		placeholders = append(placeholders, b.Arg(id))
	}
	query := fmt.Sprintf(`SELECT filter_id, user_id FROM advanced_filter_users
		WHERE filter_id IN (%s) ORDER BY filter_id, user_id`, strings.Join(placeholders, ", "))

	rows, err := r.db.QueryContext(ctx, query, b.Args()...)
	if err != nil {
		return nil, db.Classify("list filter shares", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id   uuid.UUID
			user string
		)
		if err := rows.Scan(&id, &user); err != nil {
			return nil, db.Classify("scan filter share", err)
		}
		out[id] = append(out[id], user)
	}
	if err := rows.Err(); err != nil {
		return nil, db.Classify("list filter shares", err)
	}
	for id := range out {
		sort.Strings(out[id])
	}
	return out, nil
}

// Update locks the row, applies mutate and writes the result back
func (r *filterSpecRepository) Update(ctx context.Context, id uuid.UUID, mutate func(*domain.FilterSpec) error) (domain.FilterSpec, error) {
	var updated domain.FilterSpec
	err := db.WithTx(ctx, r.db, nil, func(tx *sql.Tx) error {
		spec, err := r.lockFilterSpec(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := mutate(&spec); err != nil {
			return err
		}
		spec.UpdatedAt = time.Now().UTC()

		criteria, predicate, err := encodeFilterSpec(spec)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `UPDATE advanced_filters
			SET title = $2, criteria = $3, predicate = $4, is_public = $5, updated_at = $6
			WHERE id = $1`,
			spec.ID, spec.Title, criteria, predicate, spec.IsPublic, spec.UpdatedAt)
		if err != nil {
			return db.Classify("update filter", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM advanced_filter_users WHERE filter_id = $1`, spec.ID); err != nil {
			return db.Classify("clear filter shares", err)
		}
		if err := insertShares(ctx, tx, spec.ID, spec.SharedWith); err != nil {
			return err
		}
		updated = spec
		return nil
	})
	if err != nil {
		return domain.FilterSpec{}, err
	}
	return updated, nil
}

// Delete locks the row and removes it when allow returns nil
func (r *filterSpecRepository) Delete(ctx context.Context, id uuid.UUID, allow func(domain.FilterSpec) error) error {
	return db.WithTx(ctx, r.db, nil, func(tx *sql.Tx) error {
		spec, err := r.lockFilterSpec(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := allow(spec); err != nil {
			return err
		}
		// DuckDB has no cascading foreign keys
		if _, err := tx.ExecContext(ctx, `DELETE FROM advanced_filter_users WHERE filter_id = $1`, id); err != nil {
			return db.Classify("delete filter shares", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM advanced_filters WHERE id = $1`, id); err != nil {
			return db.Classify("delete filter", err)
		}
		return nil
	})
}

func (r *filterSpecRepository) lockFilterSpec(ctx context.Context, tx *sql.Tx, id uuid.UUID) (domain.FilterSpec, error) {
	query := `SELECT ` + filterColumns + ` FROM advanced_filters f WHERE f.id = $1`
	if r.dialect == db.DialectPostgres {
		query += ` FOR UPDATE`
	}
	spec, err := scanFilterSpec(tx.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.FilterSpec{}, fmt.Errorf("filter %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.FilterSpec{}, db.Classify("lock filter", err)
	}

	rows, err := tx.QueryContext(ctx, `SELECT user_id FROM advanced_filter_users WHERE filter_id = $1 ORDER BY user_id`, id)
	if err != nil {
		return domain.FilterSpec{}, db.Classify("load filter shares", err)
	}
	defer rows.Close()
	for rows.Next() {
		var user string
		if err := rows.Scan(&user); err != nil {
			return domain.FilterSpec{}, db.Classify("scan filter share", err)
		}
		spec.SharedWith = append(spec.SharedWith, user)
	}
	if err := rows.Err(); err != nil {
		return domain.FilterSpec{}, db.Classify("load filter shares", err)
	}
	return spec, nil
}

func insertShares(ctx context.Context, tx *sql.Tx, id uuid.UUID, users []string) error {
	for _, user := range users {
		if _, err := tx.ExecContext(ctx, `INSERT INTO advanced_filter_users (filter_id, user_id) VALUES ($1, $2)`, id, user); err != nil {
			return db.Classify("insert filter share", err)
		}
	}
	return nil
}
