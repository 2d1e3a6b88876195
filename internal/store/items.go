package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/nurdspace/nurdbar/internal/db"
	"github.com/nurdspace/nurdbar/internal/model"
)

// itemSelect reads a lot together with its stock, which is the sum of the
// counts of its active transactions.
const itemSelect = `SELECT i.id, i.barcode, i.price, i.created_at, i.updated_at,
        COALESCE((SELECT SUM(t.count) FROM transactions t
                  WHERE t.item_id = i.id AND t.archived = 0), 0)
 FROM items i`

func scanItem(row interface{ Scan(...any) error }, item *model.Item) error {
	return row.Scan(&item.ID, &item.Barcode, &item.Price, &item.CreatedAt, &item.UpdatedAt, &item.Stock)
}

// CreateItem creates a lot for barcode at price.
func CreateItem(ctx context.Context, q Querier, barcode string, price decimal.Decimal) (*model.Item, error) {
	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		return nil, fmt.Errorf("creating item: barcode required")
	}
	if price.IsNegative() {
		return nil, fmt.Errorf("creating item: %w: negative price %s", model.ErrInvalidAmount, price)
	}

	now := nowFunc()
	result, err := q.ExecContext(ctx,
		`INSERT INTO items (barcode, price, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		barcode, price.String(), now, now,
	)
	if err != nil {
		return nil, itemWriteError("creating item", err, barcode, price)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, wrap("getting item id", err)
	}

	return GetItem(ctx, q, id)
}

// GetItem returns a lot by ID.
func GetItem(ctx context.Context, q Querier, id int64) (*model.Item, error) {
	item := &model.Item{}
	err := scanItem(q.QueryRowContext(ctx, itemSelect+` WHERE i.id = ?`, id), item)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, wrap("getting item", err)
	}
	return item, nil
}

// GetItemByPrice returns the lot of barcode with exactly price, or nil.
func GetItemByPrice(ctx context.Context, q Querier, barcode string, price decimal.Decimal) (*model.Item, error) {
	item := &model.Item{}
	err := scanItem(q.QueryRowContext(ctx,
		itemSelect+` WHERE i.barcode = ? AND i.price = ?`, barcode, price.String(),
	), item)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, wrap("getting item by price", err)
	}
	return item, nil
}

// ListItemsByBarcode returns every lot of barcode, oldest first.
func ListItemsByBarcode(ctx context.Context, q Querier, barcode string) ([]model.Item, error) {
	rows, err := q.QueryContext(ctx,
		itemSelect+` WHERE i.barcode = ? ORDER BY i.created_at, i.id`, barcode,
	)
	if err != nil {
		return nil, wrap("listing items", err)
	}
	defer rows.Close()

	var items []model.Item
	for rows.Next() {
		var item model.Item
		if err := scanItem(rows, &item); err != nil {
			return nil, wrap("scanning item", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("listing items", err)
	}
	return items, nil
}

// GetFirstItemByBarcode returns the oldest lot of barcode, or nil.
func GetFirstItemByBarcode(ctx context.Context, q Querier, barcode string) (*model.Item, error) {
	item := &model.Item{}
	err := scanItem(q.QueryRowContext(ctx,
		itemSelect+` WHERE i.barcode = ? ORDER BY i.created_at, i.id LIMIT 1`, barcode,
	), item)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, wrap("getting first item", err)
	}
	return item, nil
}

// ItemBarcodeExists reports whether any lot uses barcode.
func ItemBarcodeExists(ctx context.Context, q Querier, barcode string) (bool, error) {
	var count int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM items WHERE barcode = ?`, barcode,
	).Scan(&count)
	if err != nil {
		return false, wrap("checking item barcode", err)
	}
	return count > 0, nil
}

// ItemStock returns the stock of one lot.
func ItemStock(ctx context.Context, q Querier, itemID int64) (int, error) {
	var stock int
	err := q.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(count), 0) FROM transactions WHERE item_id = ? AND archived = 0`, itemID,
	).Scan(&stock)
	if err != nil {
		return 0, wrap("getting item stock", err)
	}
	return stock, nil
}

// BarcodeStock returns the stock summed over every lot of barcode.
func BarcodeStock(ctx context.Context, q Querier, barcode string) (int, error) {
	var stock int
	err := q.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(t.count), 0)
		 FROM transactions t JOIN items i ON i.id = t.item_id
		 WHERE i.barcode = ? AND t.archived = 0`, barcode,
	).Scan(&stock)
	if err != nil {
		return 0, wrap("getting barcode stock", err)
	}
	return stock, nil
}

// ListStockLevels returns the stock per barcode, skipping exclude.
func ListStockLevels(ctx context.Context, q Querier, exclude string) ([]model.StockLevel, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT i.barcode, COUNT(DISTINCT i.id),
		        COALESCE(SUM(CASE WHEN t.archived = 0 THEN t.count END), 0)
		 FROM items i
		 LEFT JOIN transactions t ON t.item_id = i.id
		 WHERE i.barcode != ?
		 GROUP BY i.barcode
		 ORDER BY i.barcode`, exclude,
	)
	if err != nil {
		return nil, wrap("listing stock levels", err)
	}
	defer rows.Close()

	var levels []model.StockLevel
	for rows.Next() {
		var l model.StockLevel
		if err := rows.Scan(&l.Barcode, &l.Lots, &l.Stock); err != nil {
			return nil, wrap("scanning stock level", err)
		}
		levels = append(levels, l)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("listing stock levels", err)
	}
	return levels, nil
}

// UpdateItemPrice reprices a lot. Past transactions keep their price.
func UpdateItemPrice(ctx context.Context, q Querier, id int64, price decimal.Decimal) (*model.Item, error) {
	if price.IsNegative() {
		return nil, fmt.Errorf("updating item: %w: negative price %s", model.ErrInvalidAmount, price)
	}

	current, err := GetItem(ctx, q, id)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, fmt.Errorf("updating item %d: %w", id, model.ErrUnknownItem)
	}

	_, err = q.ExecContext(ctx,
		`UPDATE items SET price = ?, updated_at = ? WHERE id = ?`,
		price.String(), touch(current.UpdatedAt), id,
	)
	if err != nil {
		return nil, itemWriteError("updating item", err, current.Barcode, price)
	}

	return GetItem(ctx, q, id)
}

func itemWriteError(op string, err error, barcode string, price decimal.Decimal) error {
	if db.IsUniqueViolation(err, "items.barcode") {
		return fmt.Errorf("%s: %w", op, &model.DuplicateKeyError{
			Field: "barcode+price",
			Value: barcode + "@" + price.String(),
		})
	}
	return wrap(op, err)
}

// SetItemPicture stores the picture shown for barcode, replacing any
// previous one.
func SetItemPicture(ctx context.Context, q Querier, barcode string, image []byte, mime string) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO item_pictures (barcode, image, image_mime, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(barcode) DO UPDATE SET image = excluded.image,
		     image_mime = excluded.image_mime, updated_at = excluded.updated_at`,
		barcode, image, mime, nowFunc(),
	)
	if err != nil {
		return wrap("setting item picture", err)
	}
	return nil
}

// GetItemPicture returns the picture for barcode and its MIME type.
// A missing picture returns nil data.
func GetItemPicture(ctx context.Context, q Querier, barcode string) ([]byte, string, error) {
	var image []byte
	var mime string
	err := q.QueryRowContext(ctx,
		`SELECT image, image_mime FROM item_pictures WHERE barcode = ?`, barcode,
	).Scan(&image, &mime)
	if err == sql.ErrNoRows {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", wrap("getting item picture", err)
	}
	return image, mime, nil
}
