package database

import (
	"github.com/cpacia/multisig/multisig"
	"github.com/jinzhu/gorm"
)

// WalletData is the interface for access to the wallet files kept in the
// data directory. The key file holds the private keys and the commitment
// file the multisig address.
type WalletData interface {
	// GetKeyFile returns the raw contents of the key file. If the file is
	// sealed with a passphrase, sealed is true.
	GetKeyFile() (raw []byte, sealed bool, err error)

	// SetKeyFile saves the key file contents.
	SetKeyFile(raw []byte, sealed bool) error

	// GetCommitment returns the multisig commitment.
	GetCommitment() (*multisig.Commitment, error)

	// SetCommitment saves the multisig commitment.
	SetCommitment(c *multisig.Commitment) error
}

// Tx is a database transaction. Spend sessions live in sqlite while the key
// file and the commitment are flat files in the wallet directory. Both are
// written together on Commit so a failed Update leaves neither changed.
//
// Wallet data methods return an os.IsNotExist error if the file is not found.
type Tx interface {
	// Commit writes staged wallet files and commits the sql transaction.
	// Calling this function on a managed transaction will result in a panic.
	Commit() error

	// Rollback discards all staged changes. Calling this function on a
	// managed transaction will result in a panic.
	Rollback() error

	// Read returns the underlying sql database for queries.
	Read() *gorm.DB

	// Save will save the passed in model to the database. If it already exists
	// it will be overridden.
	Save(i interface{}) error

	// Migrate will auto-migrate the database to from any previous schema for this
	// model to the current schema.
	Migrate(model interface{}) error

	// RegisterCommitHook registers a callback that is invoked whenever a
	// commit completes successfully.
	RegisterCommitHook(fn func())

	WalletData
}

// Database is an interface which exposes a minimal amount of functions methods
// needed to atomically read and write to the database.
type Database interface {
	// View invokes the passed function in the context of a managed
	// read-only transaction.  Any errors returned from the user-supplied
	// function are returned from this function.
	//
	// Calling Rollback or Commit on the transaction passed to the
	// user-supplied function will result in a panic.
	View(fn func(tx Tx) error) error

	// Update invokes the passed function in the context of a managed
	// read-write transaction.  Any errors returned from the user-supplied
	// function will cause the transaction to be rolled back and are
	// returned from this function.  Otherwise, the transaction is committed
	// when the user-supplied function returns a nil error.
	//
	// Calling Rollback or Commit on the transaction passed to the
	// user-supplied function will result in a panic.
	Update(fn func(tx Tx) error) error

	// WalletDataPath returns the directory holding the wallet files.
	WalletDataPath() string

	// Close cleanly shuts down the database.  It will block until all
	// database transactions have been finalized (rolled back or committed).
	Close() error
}
