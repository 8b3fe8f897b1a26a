package ffsqlite

import (
	"errors"
	"github.com/cpacia/multisig/database"
	"github.com/cpacia/multisig/multisig"
	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/sqlite" // Import sqlite dialect
	"github.com/op/go-logging"
	"os"
	"path"
	"sync"
)

const (
	dbName = "multisig.db"
)

var log = logging.MustGetLogger("DB")

// ErrReadOnly is returned when a write is attempted inside View.
var ErrReadOnly = errors.New("tx is read only")

// DB is an implementation of the Database interface using a flat file
// store for the wallet files and a sqlite database.
type DB struct {
	db   *gorm.DB
	ffdb *FlatFileDB
	mtx  sync.Mutex
}

// NewFFSqliteDB instantiates a new db which satisfies the Database interface.
func NewFFSqliteDB(dataDir string) (database.Database, error) {
	db, err := gorm.Open("sqlite3", path.Join(dataDir, dbName))
	if err != nil {
		return nil, err
	}
	ffdb, err := NewFlatFileDB(path.Join(dataDir, "wallet"))
	if err != nil {
		return nil, err
	}
	return &DB{db: db, ffdb: ffdb}, nil
}

// NewFFMemoryDB instantiates a new db which satisfies the Database interface.
// The sqlite db will be held in memory.
func NewFFMemoryDB(dataDir string) (database.Database, error) {
	db, err := gorm.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, err
	}
	// Each connection to :memory: is a separate database.
	db.DB().SetMaxOpenConns(1)
	ffdb, err := NewFlatFileDB(path.Join(dataDir, "wallet"))
	if err != nil {
		return nil, err
	}
	return &DB{db: db, ffdb: ffdb}, nil
}

// View invokes the passed function in the context of a managed
// read-only transaction.  Any errors returned from the user-supplied
// function are returned from this function.
//
// Calling Rollback or Commit on the transaction passed to the
// user-supplied function will result in a panic.
func (fdb *DB) View(fn func(tx database.Tx) error) error {
	fdb.mtx.Lock()
	defer fdb.mtx.Unlock()

	tx := readTx(fdb.db, fdb.ffdb)
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Update invokes the passed function in the context of a managed
// read-write transaction.  Any errors returned from the user-supplied
// function will cause the transaction to be rolled back and are
// returned from this function.  Otherwise, the transaction is committed
// when the user-supplied function returns a nil error.
//
// Calling Rollback or Commit on the transaction passed to the
// user-supplied function will result in a panic.
func (fdb *DB) Update(fn func(tx database.Tx) error) error {
	fdb.mtx.Lock()
	defer fdb.mtx.Unlock()

	tx := writeTx(fdb.db, fdb.ffdb)
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// WalletDataPath returns the path to the wallet directory.
func (fdb *DB) WalletDataPath() string {
	return fdb.ffdb.Path()
}

// Close cleanly shuts down the database and syncs all data.  It will
// block until all database transactions have been finalized (rolled
// back or committed).
func (fdb *DB) Close() error {
	fdb.mtx.Lock()
	defer fdb.mtx.Unlock()

	return fdb.db.Close()
}

// tx stages wallet file writes in memory and writes them to the wallet
// directory only after the sql transaction commits.
type tx struct {
	dbtx *gorm.DB
	ffdb *FlatFileDB

	keyFile    *keyFileState
	commitment *commitmentState

	// Wallet files as they were before the first staged write. They are
	// put back if the sql commit fails after the files were written.
	prevKeyFile    *keyFileState
	prevCommitment *commitmentState

	commitHooks []func()

	closed   bool
	writable bool
}

// keyFileState is a key file write. A nil raw deletes the file.
type keyFileState struct {
	raw    []byte
	sealed bool
}

// commitmentState is a commitment write. A nil commitment deletes the file.
type commitmentState struct {
	c *multisig.Commitment
}

func writeTx(db *gorm.DB, ffdb *FlatFileDB) database.Tx {
	return &tx{dbtx: db.Begin(), ffdb: ffdb, writable: true}
}

func readTx(db *gorm.DB, ffdb *FlatFileDB) database.Tx {
	return &tx{dbtx: db, ffdb: ffdb}
}

// Commit writes the staged wallet files and commits the sql transaction.
// Calling this function on a managed transaction will result in a panic.
func (t *tx) Commit() error {
	if t.closed {
		panic("tx already closed")
	}
	defer func() { t.closed = true }()

	if !t.writable {
		return nil
	}

	if err := t.writeWalletFiles(t.keyFile, t.commitment); err != nil {
		t.restoreWalletFiles()
		t.dbtx.Rollback()
		return err
	}
	if err := t.dbtx.Commit().Error; err != nil {
		t.restoreWalletFiles()
		return err
	}
	for _, fn := range t.commitHooks {
		fn()
	}
	return nil
}

// Rollback discards the staged wallet files and rolls back the sql
// transaction. Calling this function on a managed transaction will result
// in a panic.
func (t *tx) Rollback() error {
	if t.closed {
		panic("tx already closed")
	}
	defer func() { t.closed = true }()

	if !t.writable {
		return nil
	}
	t.keyFile, t.commitment = nil, nil
	return t.dbtx.Rollback().Error
}

func (t *tx) writeWalletFiles(kf *keyFileState, c *commitmentState) error {
	if kf != nil {
		var err error
		if kf.raw == nil {
			err = t.ffdb.deleteKeyFile()
		} else {
			err = t.ffdb.SetKeyFile(kf.raw, kf.sealed)
		}
		if err != nil {
			return err
		}
	}
	if c != nil {
		if c.c == nil {
			return t.ffdb.deleteCommitment()
		}
		return t.ffdb.SetCommitment(c.c)
	}
	return nil
}

func (t *tx) restoreWalletFiles() {
	if err := t.writeWalletFiles(t.prevKeyFile, t.prevCommitment); err != nil {
		log.Errorf("Error restoring wallet files in %s: %s", t.ffdb.Path(), err)
	}
}

// Save will save the passed in model to the database. If it already exists
// it will be overridden.
func (t *tx) Save(model interface{}) error {
	if !t.writable {
		return ErrReadOnly
	}
	return t.dbtx.Save(model).Error
}

// Read returns the underlying sql database so that queries can be made
// against it.
func (t *tx) Read() *gorm.DB {
	return t.dbtx
}

// Migrate will auto-migrate the database to from any previous schema for this
// model to the current schema.
func (t *tx) Migrate(model interface{}) error {
	if !t.writable {
		return ErrReadOnly
	}
	return t.dbtx.AutoMigrate(model).Error
}

// RegisterCommitHook registers a callback that is invoked whenever a commit completes
// successfully.
func (t *tx) RegisterCommitHook(fn func()) {
	t.commitHooks = append(t.commitHooks, fn)
}

// GetKeyFile returns the key file, including a write staged in this
// transaction.
func (t *tx) GetKeyFile() ([]byte, bool, error) {
	if t.keyFile != nil {
		if t.keyFile.raw == nil {
			return nil, false, &os.PathError{Op: "open", Path: t.ffdb.dataPathJoin(KeyFile), Err: os.ErrNotExist}
		}
		return t.keyFile.raw, t.keyFile.sealed, nil
	}
	return t.ffdb.GetKeyFile()
}

// SetKeyFile stages a key file write.
func (t *tx) SetKeyFile(raw []byte, sealed bool) error {
	if !t.writable {
		return ErrReadOnly
	}
	if t.prevKeyFile == nil {
		current, currentSealed, err := t.ffdb.GetKeyFile()
		if err != nil && !os.IsNotExist(err) {
			return err
		}
		t.prevKeyFile = &keyFileState{current, currentSealed}
	}
	t.keyFile = &keyFileState{append([]byte(nil), raw...), sealed}
	return nil
}

// GetCommitment returns the commitment, including a write staged in this
// transaction.
func (t *tx) GetCommitment() (*multisig.Commitment, error) {
	if t.commitment != nil {
		if t.commitment.c == nil {
			return nil, &os.PathError{Op: "open", Path: t.ffdb.dataPathJoin(CommitmentFile), Err: os.ErrNotExist}
		}
		return t.commitment.c, nil
	}
	return t.ffdb.GetCommitment()
}

// SetCommitment stages a commitment write.
func (t *tx) SetCommitment(c *multisig.Commitment) error {
	if !t.writable {
		return ErrReadOnly
	}
	if t.prevCommitment == nil {
		current, err := t.ffdb.GetCommitment()
		if err != nil && !os.IsNotExist(err) {
			return err
		}
		t.prevCommitment = &commitmentState{current}
	}
	t.commitment = &commitmentState{c}
	return nil
}
