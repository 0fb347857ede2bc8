package sqlitewallet

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/arkade-os/lotteryd/internal/core/ports"
	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

const (
	driverName = "sqlite"

	deposit  = 0
	transfer = 1
)

//go:embed schema.sql
var schema string

type wallet struct {
	db *sql.DB
}

// NewWallet opens, or creates, the wallet database at dbPath.
func NewWallet(dbPath string) (ports.WalletService, error) {
	dir := filepath.Dir(dbPath)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %v", err)
		}
	}

	db, err := sql.Open(driverName, dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open wallet db: %w", err)
	}
	// A single connection serializes movements.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply wallet schema: %w", err)
	}
	return &wallet{db}, nil
}

func (w *wallet) Deposit(
	ctx context.Context, reference, from string, amount uint64,
) error {
	return w.apply(ctx, reference, deposit, from, amount, func(tx *sql.Tx, escrow uint64) error {
		if escrow+amount < escrow || escrow+amount > math.MaxInt64 {
			return fmt.Errorf("escrow overflow")
		}
		if err := setEscrow(ctx, tx, escrow+amount); err != nil {
			return err
		}
		log.Debugf("wallet: deposited %d from %s (%s)", amount, from, reference)
		return nil
	})
}

func (w *wallet) Transfer(
	ctx context.Context, reference, to string, amount uint64,
) error {
	if len(to) <= 0 {
		return fmt.Errorf("missing recipient")
	}
	return w.apply(ctx, reference, transfer, to, amount, func(tx *sql.Tx, escrow uint64) error {
		if escrow < amount {
			return fmt.Errorf(
				"%w: escrow %d, requested %d", ports.ErrInsufficientFunds, escrow, amount,
			)
		}
		if err := setEscrow(ctx, tx, escrow-amount); err != nil {
			return err
		}
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO balance (account, amount) VALUES (?, ?)
			ON CONFLICT(account) DO UPDATE SET amount = amount + excluded.amount`,
			to, int64(amount),
		); err != nil {
			return fmt.Errorf("failed to update balance: %w", err)
		}
		log.Debugf("wallet: transferred %d to %s (%s)", amount, to, reference)
		return nil
	})
}

func (w *wallet) Balance(ctx context.Context, account string) (uint64, error) {
	var amount int64
	err := w.db.QueryRowContext(
		ctx, "SELECT amount FROM balance WHERE account = ?", account,
	).Scan(&amount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}
	return uint64(amount), nil
}

func (w *wallet) EscrowBalance(ctx context.Context) (uint64, error) {
	var amount int64
	if err := w.db.QueryRowContext(
		ctx, "SELECT amount FROM escrow WHERE id = 1",
	).Scan(&amount); err != nil {
		return 0, fmt.Errorf("failed to get escrow: %w", err)
	}
	return uint64(amount), nil
}

func (w *wallet) Close() {
	_ = w.db.Close()
}

// apply runs fn and records the movement in the same transaction, unless the
// reference was already applied with the same details.
func (w *wallet) apply(
	ctx context.Context, reference string, kind int, account string, amount uint64,
	fn func(tx *sql.Tx, escrow uint64) error,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(reference) <= 0 {
		return fmt.Errorf("missing reference")
	}
	if amount > math.MaxInt64 {
		return fmt.Errorf("amount %d is too large", amount)
	}

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	// nolint:errcheck
	defer tx.Rollback()

	var prevKind int
	var prevAccount string
	var prevAmount int64
	err = tx.QueryRowContext(
		ctx, "SELECT kind, account, amount FROM movement WHERE reference = ?", reference,
	).Scan(&prevKind, &prevAccount, &prevAmount)
	switch {
	case err == nil:
		if prevKind != kind || prevAccount != account || uint64(prevAmount) != amount {
			return fmt.Errorf("%w: %s", ports.ErrReferenceReused, reference)
		}
		return nil
	case !errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("failed to get movement: %w", err)
	}

	var escrow int64
	if err := tx.QueryRowContext(
		ctx, "SELECT amount FROM escrow WHERE id = 1",
	).Scan(&escrow); err != nil {
		return fmt.Errorf("failed to get escrow: %w", err)
	}
	if err := fn(tx, uint64(escrow)); err != nil {
		return err
	}

	if _, err := tx.ExecContext(
		ctx, "INSERT INTO movement (reference, kind, account, amount) VALUES (?, ?, ?, ?)",
		reference, kind, account, int64(amount),
	); err != nil {
		return fmt.Errorf("failed to insert movement: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func setEscrow(ctx context.Context, tx *sql.Tx, amount uint64) error {
	if _, err := tx.ExecContext(
		ctx, "UPDATE escrow SET amount = ? WHERE id = 1", int64(amount),
	); err != nil {
		return fmt.Errorf("failed to update escrow: %w", err)
	}
	return nil
}
