package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"estoque/internal/core/domain"
)

// ErrNoRowChange is returned when a quantity write matched no row.
var ErrNoRowChange = errors.New("quantity update affected no row")

// MySQLAdapter implements port.ItemRepository and port.LedgerRepository
// over the shared backend. Quantity writes are conditional so the
// stock floor (quantity >= 0) holds no matter how callers race.
type MySQLAdapter struct {
	db     *sql.DB
	tracer trace.Tracer
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{
		db:     db,
		tracer: otel.Tracer("estoque/storage"),
	}
}

func (m *MySQLAdapter) ListByClass(ctx context.Context, category domain.Category, location string) ([]domain.InventoryItem, error) {
	ctx, span := m.tracer.Start(ctx, "storage.list_items", trace.WithAttributes(
		attribute.String("category", string(category)),
		attribute.String("location", location),
	))
	defer span.End()

	// Name-then-id is the collection's natural order; scan resolution
	// depends on it being deterministic.
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, name, quantity, unit, category, min_quantity, location, perishable, unit_price, created_at, updated_at
		FROM items
		WHERE category = ? AND location = ?
		ORDER BY name ASC, id ASC`,
		category, location,
	)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	var items []domain.InventoryItem
	for rows.Next() {
		var it domain.InventoryItem
		if err := rows.Scan(
			&it.ID, &it.Name, &it.Quantity, &it.Unit, &it.Category,
			&it.MinQuantity, &it.Location, &it.Perishable, &it.UnitPrice,
			&it.CreatedAt, &it.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}

	span.SetAttributes(attribute.Int("items.count", len(items)))
	return items, nil
}

func (m *MySQLAdapter) GetByID(ctx context.Context, id string) (*domain.InventoryItem, error) {
	var it domain.InventoryItem
	err := m.db.QueryRowContext(ctx, `
		SELECT id, name, quantity, unit, category, min_quantity, location, perishable, unit_price, created_at, updated_at
		FROM items WHERE id = ?`, id,
	).Scan(
		&it.ID, &it.Name, &it.Quantity, &it.Unit, &it.Category,
		&it.MinQuantity, &it.Location, &it.Perishable, &it.UnitPrice,
		&it.CreatedAt, &it.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query item: %w", err)
	}
	return &it, nil
}

// DecrementIfAvailable subtracts qty only when enough stock remains,
// then re-reads the quantity inside the same transaction.
func (m *MySQLAdapter) DecrementIfAvailable(ctx context.Context, id string, qty int) (int, bool, error) {
	ctx, span := m.tracer.Start(ctx, "storage.decrement", trace.WithAttributes(
		attribute.String("item.id", id),
		attribute.Int("qty", qty),
	))
	defer span.End()

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE items
		SET quantity = quantity - ?, updated_at = NOW()
		WHERE id = ? AND quantity >= ?`,
		qty, id, qty,
	)
	if err != nil {
		return 0, false, fmt.Errorf("update quantity: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		span.SetAttributes(attribute.Bool("rejected", true))
		return 0, false, nil
	}

	var remaining int
	if err := tx.QueryRowContext(ctx, `SELECT quantity FROM items WHERE id = ?`, id).Scan(&remaining); err != nil {
		return 0, false, fmt.Errorf("read remaining: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, false, fmt.Errorf("commit: %w", err)
	}

	span.SetAttributes(attribute.Int("remaining", remaining))
	return remaining, true, nil
}

func (m *MySQLAdapter) IncreaseQuantity(ctx context.Context, id string, qty int) (int, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE items
		SET quantity = quantity + ?, updated_at = NOW()
		WHERE id = ?`,
		qty, id,
	)
	if err != nil {
		return 0, fmt.Errorf("update quantity: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return 0, ErrNoRowChange
	}

	var remaining int
	if err := tx.QueryRowContext(ctx, `SELECT quantity FROM items WHERE id = ?`, id).Scan(&remaining); err != nil {
		return 0, fmt.Errorf("read remaining: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return remaining, nil
}

func (m *MySQLAdapter) AppendEntry(ctx context.Context, entry domain.LedgerEntry) error {
	ctx, span := m.tracer.Start(ctx, "storage.append_ledger", trace.WithAttributes(
		attribute.String("item.name", entry.ItemName),
		attribute.String("direction", string(entry.Direction)),
		attribute.Int("qty", entry.Quantity),
	))
	defer span.End()

	_, err := m.db.ExecContext(ctx, `
		INSERT INTO ledger (id, item_name, quantity, direction, note, location, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.ItemName, entry.Quantity, entry.Direction,
		entry.Note, entry.Location, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) ListRecent(ctx context.Context, location string, limit int) ([]domain.LedgerEntry, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, item_name, quantity, direction, note, location, created_at
		FROM ledger
		WHERE location = ?
		ORDER BY created_at DESC
		LIMIT ?`,
		location, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query ledger: %w", err)
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		var e domain.LedgerEntry
		if err := rows.Scan(&e.ID, &e.ItemName, &e.Quantity, &e.Direction, &e.Note, &e.Location, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger: %w", err)
	}
	return entries, nil
}
