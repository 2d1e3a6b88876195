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

const memberColumns = `id, barcode, nick, created_at, updated_at`

// CreateMember registers a member. Barcode and nick must both be unused.
func CreateMember(ctx context.Context, q Querier, barcode, nick string) (*model.Member, error) {
	barcode = strings.TrimSpace(barcode)
	nick = strings.TrimSpace(nick)
	if barcode == "" || nick == "" {
		return nil, fmt.Errorf("creating member: barcode and nick required")
	}

	now := nowFunc()
	result, err := q.ExecContext(ctx,
		`INSERT INTO members (barcode, nick, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		barcode, nick, now, now,
	)
	if err != nil {
		return nil, memberWriteError("creating member", err, barcode, nick)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, wrap("getting member id", err)
	}

	return GetMember(ctx, q, id)
}

// GetMember returns a member by ID, with its balance.
func GetMember(ctx context.Context, q Querier, id int64) (*model.Member, error) {
	return getMember(ctx, q, "getting member", `id = ?`, id)
}

// GetMemberByBarcode returns the member with the given barcode, or nil.
func GetMemberByBarcode(ctx context.Context, q Querier, barcode string) (*model.Member, error) {
	return getMember(ctx, q, "getting member by barcode", `barcode = ?`, barcode)
}

// GetMemberByNick returns the member with the given nick, or nil.
func GetMemberByNick(ctx context.Context, q Querier, nick string) (*model.Member, error) {
	return getMember(ctx, q, "getting member by nick", `nick = ?`, nick)
}

func getMember(ctx context.Context, q Querier, op, where string, arg any) (*model.Member, error) {
	m := &model.Member{}
	err := q.QueryRowContext(ctx,
		`SELECT `+memberColumns+` FROM members WHERE `+where, arg,
	).Scan(&m.ID, &m.Barcode, &m.Nick, &m.CreatedAt, &m.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, wrap(op, err)
	}

	balance, err := MemberBalance(ctx, q, m.ID)
	if err != nil {
		return nil, err
	}
	m.Balance = balance
	return m, nil
}

// ListMembers returns all members ordered by nick, with balances.
func ListMembers(ctx context.Context, q Querier) ([]model.Member, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+memberColumns+` FROM members ORDER BY nick`,
	)
	if err != nil {
		return nil, wrap("listing members", err)
	}

	var members []model.Member
	for rows.Next() {
		var m model.Member
		if err := rows.Scan(&m.ID, &m.Barcode, &m.Nick, &m.CreatedAt, &m.UpdatedAt); err != nil {
			rows.Close()
			return nil, wrap("scanning member", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, wrap("listing members", err)
	}
	rows.Close()

	// Balances are read after the member rows are closed: the pool has a
	// single connection.
	balances, err := memberBalances(ctx, q)
	if err != nil {
		return nil, err
	}
	for i := range members {
		members[i].Balance = balances[members[i].ID]
	}
	return members, nil
}

// UpdateMemberNick renames a member.
func UpdateMemberNick(ctx context.Context, q Querier, id int64, nick string) (*model.Member, error) {
	nick = strings.TrimSpace(nick)
	if nick == "" {
		return nil, fmt.Errorf("updating member: nick required")
	}

	current, err := GetMember(ctx, q, id)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, fmt.Errorf("updating member %d: %w", id, model.ErrUnknownMember)
	}

	_, err = q.ExecContext(ctx,
		`UPDATE members SET nick = ?, updated_at = ? WHERE id = ?`,
		nick, touch(current.UpdatedAt), id,
	)
	if err != nil {
		return nil, memberWriteError("updating member", err, current.Barcode, nick)
	}

	return GetMember(ctx, q, id)
}

func memberWriteError(op string, err error, barcode, nick string) error {
	switch {
	case db.IsUniqueViolation(err, "members.barcode"):
		return fmt.Errorf("%s: %w", op, &model.DuplicateKeyError{Field: "barcode", Value: barcode})
	case db.IsUniqueViolation(err, "members.nick"):
		return fmt.Errorf("%s: %w", op, &model.DuplicateKeyError{Field: "nick", Value: nick})
	}
	return wrap(op, err)
}

// MemberBalance sums the prices of a member's active transactions.
func MemberBalance(ctx context.Context, q Querier, memberID int64) (decimal.Decimal, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT transaction_price FROM transactions WHERE member_id = ? AND archived = 0`,
		memberID,
	)
	if err != nil {
		return decimal.Zero, wrap("getting member balance", err)
	}
	defer rows.Close()

	total := decimal.Zero
	for rows.Next() {
		var price decimal.Decimal
		if err := rows.Scan(&price); err != nil {
			return decimal.Zero, wrap("scanning transaction price", err)
		}
		total = total.Add(price)
	}
	if err := rows.Err(); err != nil {
		return decimal.Zero, wrap("getting member balance", err)
	}
	return total, nil
}

func memberBalances(ctx context.Context, q Querier) (map[int64]decimal.Decimal, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT member_id, transaction_price FROM transactions WHERE archived = 0`,
	)
	if err != nil {
		return nil, wrap("getting member balances", err)
	}
	defer rows.Close()

	balances := make(map[int64]decimal.Decimal)
	for rows.Next() {
		var memberID int64
		var price decimal.Decimal
		if err := rows.Scan(&memberID, &price); err != nil {
			return nil, wrap("scanning transaction price", err)
		}
		balances[memberID] = balances[memberID].Add(price)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("getting member balances", err)
	}
	return balances, nil
}
