package badgerwallet

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/arkade-os/lotteryd/internal/core/ports"
	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	log "github.com/sirupsen/logrus"
	"github.com/timshannon/badgerhold/v4"
)

const (
	walletStoreDir = "wallet"
	escrowKey      = "escrow"

	deposit  = 0
	transfer = 1
)

type movementDTO struct {
	Reference string
	Kind      int
	Account   string
	Amount    uint64
}

type balanceDTO struct {
	Account string
	Amount  uint64
}

type escrowDTO struct {
	Amount uint64
}

// wallet keeps the escrow, the account balances and every applied movement in
// a badger store, a movement and the balances it touches are written in the
// same transaction.
type wallet struct {
	lock  sync.Mutex
	store *badgerhold.Store
}

// NewWallet opens the wallet store under the given base directory, or in
// memory if it's empty.
func NewWallet(config ...interface{}) (ports.WalletService, error) {
	if len(config) != 2 {
		return nil, fmt.Errorf("invalid config")
	}
	baseDir, ok := config[0].(string)
	if !ok {
		return nil, fmt.Errorf("invalid base directory")
	}
	var logger badger.Logger
	if config[1] != nil {
		logger, ok = config[1].(badger.Logger)
		if !ok {
			return nil, fmt.Errorf("invalid logger")
		}
	}

	var dir string
	if len(baseDir) > 0 {
		dir = filepath.Join(baseDir, walletStoreDir)
	}
	store, err := createDB(dir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open wallet store: %s", err)
	}
	return &wallet{store: store}, nil
}

func (w *wallet) Deposit(
	ctx context.Context, reference, from string, amount uint64,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	mov := movementDTO{reference, deposit, from, amount}
	return w.apply(mov, func(tx *badger.Txn, escrow uint64) error {
		if escrow+amount < escrow {
			return fmt.Errorf("escrow overflow")
		}
		if err := w.store.TxUpsert(tx, escrowKey, escrowDTO{escrow + amount}); err != nil {
			return err
		}
		log.Debugf("wallet: deposited %d from %s (%s)", amount, from, reference)
		return nil
	})
}

func (w *wallet) Transfer(
	ctx context.Context, reference, to string, amount uint64,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(to) <= 0 {
		return fmt.Errorf("missing recipient")
	}

	mov := movementDTO{reference, transfer, to, amount}
	return w.apply(mov, func(tx *badger.Txn, escrow uint64) error {
		if escrow < amount {
			return fmt.Errorf(
				"%w: escrow %d, requested %d", ports.ErrInsufficientFunds, escrow, amount,
			)
		}
		balance, err := w.getBalance(tx, to)
		if err != nil {
			return err
		}
		if err := w.store.TxUpsert(tx, escrowKey, escrowDTO{escrow - amount}); err != nil {
			return err
		}
		if err := w.store.TxUpsert(tx, to, balanceDTO{to, balance + amount}); err != nil {
			return err
		}
		log.Debugf("wallet: transferred %d to %s (%s)", amount, to, reference)
		return nil
	})
}

func (w *wallet) Balance(ctx context.Context, account string) (uint64, error) {
	var balance uint64
	err := w.store.Badger().View(func(tx *badger.Txn) error {
		var err error
		balance, err = w.getBalance(tx, account)
		return err
	})
	return balance, err
}

func (w *wallet) EscrowBalance(ctx context.Context) (uint64, error) {
	var escrow uint64
	err := w.store.Badger().View(func(tx *badger.Txn) error {
		var err error
		escrow, err = w.getEscrow(tx)
		return err
	})
	return escrow, err
}

func (w *wallet) Close() {
	_ = w.store.Close()
}

// apply runs fn and records the movement, unless the reference was already
// applied with the same details.
func (w *wallet) apply(
	mov movementDTO, fn func(tx *badger.Txn, escrow uint64) error,
) error {
	if len(mov.Reference) <= 0 {
		return fmt.Errorf("missing reference")
	}

	w.lock.Lock()
	defer w.lock.Unlock()

	return w.store.Badger().Update(func(tx *badger.Txn) error {
		var prev movementDTO
		err := w.store.TxGet(tx, mov.Reference, &prev)
		if err == nil {
			if prev != mov {
				return fmt.Errorf("%w: %s", ports.ErrReferenceReused, mov.Reference)
			}
			return nil
		}
		if !errors.Is(err, badgerhold.ErrNotFound) {
			return err
		}

		escrow, err := w.getEscrow(tx)
		if err != nil {
			return err
		}
		if err := fn(tx, escrow); err != nil {
			return err
		}
		return w.store.TxInsert(tx, mov.Reference, mov)
	})
}

func (w *wallet) getEscrow(tx *badger.Txn) (uint64, error) {
	var dto escrowDTO
	if err := w.store.TxGet(tx, escrowKey, &dto); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return dto.Amount, nil
}

func (w *wallet) getBalance(tx *badger.Txn, account string) (uint64, error) {
	var dto balanceDTO
	if err := w.store.TxGet(tx, account, &dto); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return dto.Amount, nil
}

func createDB(dbDir string, logger badger.Logger) (*badgerhold.Store, error) {
	opts := badger.DefaultOptions(dbDir)
	opts.Logger = logger

	if len(dbDir) <= 0 {
		opts.InMemory = true
	} else {
		opts.Compression = options.ZSTD
	}

	return badgerhold.Open(badgerhold.Options{
		Encoder:          badgerhold.DefaultEncode,
		Decoder:          badgerhold.DefaultDecode,
		SequenceBandwith: 100,
		Options:          opts,
	})
}
