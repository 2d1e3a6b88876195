package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nurdspace/nurdbar/internal/db"
	"github.com/nurdspace/nurdbar/internal/model"
)

func TestCreateAndGetMember(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	member, err := CreateMember(ctx, database, "m-1", "alice")
	if err != nil {
		t.Fatalf("CreateMember: %v", err)
	}
	if member.Nick != "alice" || member.Barcode != "m-1" {
		t.Errorf("unexpected member %+v", member)
	}
	if !member.Balance.IsZero() {
		t.Errorf("expected zero balance, got %s", member.Balance)
	}
	if !member.CreatedAt.Equal(member.UpdatedAt) {
		t.Errorf("expected created_at == updated_at on insert, got %v and %v", member.CreatedAt, member.UpdatedAt)
	}

	byBarcode, err := GetMemberByBarcode(ctx, database, "m-1")
	if err != nil {
		t.Fatalf("GetMemberByBarcode: %v", err)
	}
	if byBarcode == nil || byBarcode.ID != member.ID {
		t.Errorf("expected member %d by barcode, got %+v", member.ID, byBarcode)
	}

	byNick, err := GetMemberByNick(ctx, database, "alice")
	if err != nil {
		t.Fatalf("GetMemberByNick: %v", err)
	}
	if byNick == nil || byNick.ID != member.ID {
		t.Errorf("expected member %d by nick, got %+v", member.ID, byNick)
	}

	missing, err := GetMemberByBarcode(ctx, database, "nope")
	if err != nil {
		t.Fatalf("GetMemberByBarcode: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for missing member")
	}
}

func TestCreateMemberDuplicates(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	if _, err := CreateMember(ctx, database, "m-1", "alice"); err != nil {
		t.Fatalf("CreateMember: %v", err)
	}

	_, err := CreateMember(ctx, database, "m-1", "bob")
	var dup *model.DuplicateKeyError
	if !errors.As(err, &dup) || dup.Field != "barcode" {
		t.Errorf("expected duplicate barcode error, got %v", err)
	}

	_, err = CreateMember(ctx, database, "m-2", "alice")
	if !errors.As(err, &dup) || dup.Field != "nick" {
		t.Errorf("expected duplicate nick error, got %v", err)
	}
	if !errors.Is(err, model.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}

	members, _ := ListMembers(ctx, database)
	if len(members) != 1 {
		t.Errorf("expected 1 member after rejected inserts, got %d", len(members))
	}
}

func TestCreateMemberRequiresFields(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	if _, err := CreateMember(ctx, database, " ", "alice"); err == nil {
		t.Error("expected error for blank barcode")
	}
	if _, err := CreateMember(ctx, database, "m-1", ""); err == nil {
		t.Error("expected error for blank nick")
	}
}

func TestUpdateMemberNickAdvancesUpdatedAt(t *testing.T) {
	fixClock(t, time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC))
	database := db.NewTestDB(t)
	ctx := context.Background()

	member, _ := CreateMember(ctx, database, "m-1", "alice")
	updated, err := UpdateMemberNick(ctx, database, member.ID, "alicia")
	if err != nil {
		t.Fatalf("UpdateMemberNick: %v", err)
	}
	if updated.Nick != "alicia" {
		t.Errorf("expected nick 'alicia', got %q", updated.Nick)
	}
	if !updated.UpdatedAt.After(member.UpdatedAt) {
		t.Errorf("expected updated_at after %v, got %v", member.UpdatedAt, updated.UpdatedAt)
	}
	if !updated.CreatedAt.Equal(member.CreatedAt) {
		t.Errorf("created_at changed from %v to %v", member.CreatedAt, updated.CreatedAt)
	}

	_, err = UpdateMemberNick(ctx, database, 999, "ghost")
	if !errors.Is(err, model.ErrUnknownMember) {
		t.Errorf("expected ErrUnknownMember, got %v", err)
	}
}

func TestMemberBalanceSkipsArchived(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	member, _ := CreateMember(ctx, database, "m-1", "alice")
	other, _ := CreateMember(ctx, database, "m-2", "bob")
	item, _ := CreateItem(ctx, database, "club-mate", decimal.RequireFromString("1.50"))

	give := model.NewTransaction(item, member, 4, time.Time{})
	take := model.NewTransaction(item, member, -1, time.Time{})
	archived := model.NewTransaction(item, member, -2, time.Time{})
	bobs := model.NewTransaction(item, other, -1, time.Time{})
	for _, tr := range []*model.Transaction{&give, &take, &archived, &bobs} {
		if err := InsertTransaction(ctx, database, tr); err != nil {
			t.Fatalf("InsertTransaction: %v", err)
		}
	}
	if err := SetTransactionArchived(ctx, database, archived.ID, true); err != nil {
		t.Fatalf("SetTransactionArchived: %v", err)
	}

	balance, err := MemberBalance(ctx, database, member.ID)
	if err != nil {
		t.Fatalf("MemberBalance: %v", err)
	}
	if !balance.Equal(decimal.RequireFromString("4.50")) {
		t.Errorf("expected balance 4.50, got %s", balance)
	}

	members, err := ListMembers(ctx, database)
	if err != nil {
		t.Fatalf("ListMembers: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("expected 2 members, got %d", len(members))
	}
	// Ordered by nick.
	if members[0].Nick != "alice" || !members[0].Balance.Equal(balance) {
		t.Errorf("unexpected first member %+v", members[0])
	}
	if !members[1].Balance.Equal(decimal.RequireFromString("-1.5")) {
		t.Errorf("expected bob at -1.5, got %s", members[1].Balance)
	}
}
