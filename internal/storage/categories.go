package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fernwick/ledgerloom/internal/common"
	"github.com/fernwick/ledgerloom/internal/model"
)

// GetCategories returns all categories ordered by name.
func (s *SQLiteStorage) GetCategories(ctx context.Context) ([]model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return getCategories(ctx, s.db)
}

// GetCategoryByName returns the category with the given name.
func (s *SQLiteStorage) GetCategoryByName(ctx context.Context, name string) (*model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(name, "name"); err != nil {
		return nil, err
	}
	return getCategoryByName(ctx, s.db, name)
}

// SaveCategories upserts the given categories. Categories come from the
// ledger, so the ledger's ids win on conflict.
func (s *SQLiteStorage) SaveCategories(ctx context.Context, categories []model.Category) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return saveCategories(ctx, s.db, categories)
}

func getCategories(ctx context.Context, q queryable) ([]model.Category, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, name, description, is_active, created_at
		FROM categories
		ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var categories []model.Category
	for rows.Next() {
		cat, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		categories = append(categories, *cat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate categories: %w", err)
	}
	return categories, nil
}

func getCategoryByName(ctx context.Context, q queryable, name string) (*model.Category, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, name, description, is_active, created_at
		FROM categories
		WHERE name = ?`, name)

	cat, err := scanCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("category %q: %w", name, common.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return cat, nil
}

func saveCategories(ctx context.Context, q queryable, categories []model.Category) error {
	for _, cat := range categories {
		if err := validateString(cat.ID, "category id"); err != nil {
			return err
		}
		if err := validateString(cat.Name, "category name"); err != nil {
			return err
		}
		_, err := q.ExecContext(ctx, `
			INSERT INTO categories (id, name, description, is_active)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				description = excluded.description,
				is_active = excluded.is_active`,
			cat.ID, cat.Name, cat.Description, cat.IsActive)
		if err != nil {
			return fmt.Errorf("failed to save category %q: %w", cat.Name, err)
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCategory(row rowScanner) (*model.Category, error) {
	var cat model.Category
	var description sql.NullString
	var createdAt sql.NullTime
	if err := row.Scan(&cat.ID, &cat.Name, &description, &cat.IsActive, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan category: %w", err)
	}
	cat.Description = description.String
	if createdAt.Valid {
		cat.CreatedAt = createdAt.Time
	}
	return &cat, nil
}
