package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
	"github.com/vibast-solutions/ms-go-donations/app/entity"
)

type fakeResult struct {
	affected int64
}

func (r fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (r fakeResult) RowsAffected() (int64, error) { return r.affected, nil }

func TestRowsAffectedOne(t *testing.T) {
	ok, err := rowsAffectedOne(fakeResult{affected: 1})
	if err != nil || !ok {
		t.Fatalf("expected true, got %v %v", ok, err)
	}
	ok, err = rowsAffectedOne(fakeResult{affected: 0})
	if err != nil || ok {
		t.Fatalf("expected false, got %v %v", ok, err)
	}
}

func TestIsDuplicateEntryError(t *testing.T) {
	if !isDuplicateEntryError(&mysqlDriver.MySQLError{Number: 1062}) {
		t.Fatal("expected 1062 to be a duplicate entry")
	}
	if isDuplicateEntryError(errors.New("boom")) {
		t.Fatal("expected plain error not to match")
	}
}

type execOnlyDB struct {
	err error
}

func (d execOnlyDB) ExecContext(context.Context, string, ...interface{}) (sql.Result, error) {
	if d.err != nil {
		return nil, d.err
	}
	return fakeResult{affected: 1}, nil
}

func (d execOnlyDB) QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error) {
	return nil, errors.New("not supported")
}

func (d execOnlyDB) QueryRowContext(context.Context, string, ...interface{}) *sql.Row {
	return nil
}

func TestPaymentTransactionCreateMapsDuplicateAttempt(t *testing.T) {
	paymentID := "pay_failed"
	txn := &entity.PaymentTransaction{
		DonationID:       7,
		Gateway:          entity.GatewayRazorpay,
		GatewayPaymentID: &paymentID,
		GrossAmount:      decimal.RequireFromString("500"),
		Currency:         "INR",
		Status:           entity.TransactionStatusFailed,
	}

	repo := NewPaymentTransactionRepository(execOnlyDB{err: &mysqlDriver.MySQLError{Number: 1062}})
	if err := repo.Create(context.Background(), txn); !errors.Is(err, ErrTransactionExists) {
		t.Fatalf("expected ErrTransactionExists, got %v", err)
	}

	boom := errors.New("connection reset")
	repo = NewPaymentTransactionRepository(execOnlyDB{err: boom})
	if err := repo.Create(context.Background(), txn); !errors.Is(err, boom) {
		t.Fatalf("expected driver error passed through, got %v", err)
	}

	repo = NewPaymentTransactionRepository(execOnlyDB{})
	if err := repo.Create(context.Background(), txn); err != nil {
		t.Fatalf("expected insert to succeed, got %v", err)
	}
}

func TestNullableDecimalValue(t *testing.T) {
	if nullableDecimalValue(nil) != nil {
		t.Fatal("expected nil")
	}
	d := decimal.RequireFromString("12.5")
	if got := nullableDecimalValue(&d); got != "12.50" {
		t.Fatalf("expected 12.50, got %v", got)
	}
	if decimalPtrFromNull(decimal.NullDecimal{}) != nil {
		t.Fatal("expected nil decimal from invalid null")
	}
	if stringPtrFromNull(sql.NullString{}) != nil {
		t.Fatal("expected nil string from invalid null")
	}
}

func TestDonationFilterConditions(t *testing.T) {
	where, args := DonationFilter{}.conditions()
	if where != "" || len(args) != 0 {
		t.Fatalf("expected empty filter, got %q %v", where, args)
	}

	where, args = DonationFilter{Status: "success", DonorEmail: " a@b.c "}.conditions()
	if where != " WHERE status = ? AND donor_email = ?" {
		t.Fatalf("unexpected where %q", where)
	}
	if len(args) != 2 || args[1] != "a@b.c" {
		t.Fatalf("unexpected args %v", args)
	}
}

func TestWebhookDedupeNilClientIsNoop(t *testing.T) {
	d := NewWebhookDedupe(nil, 0)
	seen, err := d.Seen(context.Background(), "razorpay", "evt_1")
	if err != nil || seen {
		t.Fatalf("expected unseen, got %v %v", seen, err)
	}
	if err := d.Mark(context.Background(), "razorpay", "evt_1"); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}
