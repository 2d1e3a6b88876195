package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/nurdspace/nurdbar/internal/model"
)

const transactionSelect = `SELECT t.id, t.item_id, t.member_id, t.count, t.transaction_price,
        t.archived, t.created_at, i.barcode, m.nick
 FROM transactions t
 JOIN items i ON i.id = t.item_id
 JOIN members m ON m.id = t.member_id`

// InsertTransaction records t and sets its ID. The member and item must
// exist; a zero CreatedAt is filled from the store clock.
func InsertTransaction(ctx context.Context, q Querier, t *model.Transaction) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = nowFunc()
	}

	result, err := q.ExecContext(ctx,
		`INSERT INTO transactions (item_id, member_id, count, transaction_price, archived, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		t.ItemID, t.MemberID, t.Count, t.Price.String(), t.Archived, t.CreatedAt,
	)
	if err != nil {
		return wrap("recording transaction", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return wrap("getting transaction id", err)
	}
	t.ID = id
	return nil
}

// GetTransaction returns a transaction by ID.
func GetTransaction(ctx context.Context, q Querier, id int64) (*model.Transaction, error) {
	t := &model.Transaction{}
	err := scanTransaction(q.QueryRowContext(ctx, transactionSelect+` WHERE t.id = ?`, id), t)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, wrap("getting transaction", err)
	}
	return t, nil
}

// SetTransactionArchived marks a transaction archived or active again.
func SetTransactionArchived(ctx context.Context, q Querier, id int64, archived bool) error {
	result, err := q.ExecContext(ctx,
		`UPDATE transactions SET archived = ? WHERE id = ?`, archived, id,
	)
	if err != nil {
		return wrap("archiving transaction", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return wrap("archiving transaction", err)
	}
	if n == 0 {
		return fmt.Errorf("archiving transaction %d: %w", id, model.ErrNotFound)
	}
	return nil
}

// ListMemberTransactions returns a member's transactions, oldest first.
// Archived transactions are included only when includeArchived is set.
func ListMemberTransactions(ctx context.Context, q Querier, memberID int64, includeArchived bool) (model.TransactionLog, error) {
	query := transactionSelect + ` WHERE t.member_id = ?`
	if !includeArchived {
		query += ` AND t.archived = 0`
	}
	query += ` ORDER BY t.created_at, t.id`

	rows, err := q.QueryContext(ctx, query, memberID)
	if err != nil {
		return nil, wrap("listing member transactions", err)
	}
	defer rows.Close()

	return scanTransactions(rows)
}

// ListBarcodeTransactions returns the active transactions on any lot of
// barcode, newest first.
func ListBarcodeTransactions(ctx context.Context, q Querier, barcode string) (model.TransactionLog, error) {
	rows, err := q.QueryContext(ctx,
		transactionSelect+` WHERE i.barcode = ? AND t.archived = 0
		 ORDER BY t.created_at DESC, t.id DESC`, barcode,
	)
	if err != nil {
		return nil, wrap("listing item transactions", err)
	}
	defer rows.Close()

	return scanTransactions(rows)
}

func scanTransaction(row interface{ Scan(...any) error }, t *model.Transaction) error {
	return row.Scan(&t.ID, &t.ItemID, &t.MemberID, &t.Count, &t.Price,
		&t.Archived, &t.CreatedAt, &t.ItemBarcode, &t.MemberNick)
}

func scanTransactions(rows *sql.Rows) (model.TransactionLog, error) {
	log := model.TransactionLog{}
	for rows.Next() {
		var t model.Transaction
		if err := scanTransaction(rows, &t); err != nil {
			return nil, wrap("scanning transaction", err)
		}
		log = append(log, t)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("scanning transactions", err)
	}
	return log, nil
}
