package repo

import (
	"github.com/cpacia/multisig/database"
	"github.com/cpacia/multisig/database/ffsqlite"
	"github.com/cpacia/multisig/models"
	"github.com/op/go-logging"
	"github.com/pkg/errors"
	"io/ioutil"
	"os"
	"path"
	"strconv"
	"strings"
)

const (
	// repoVersion is the data directory layout this build reads and writes.
	repoVersion = 1

	versionFileName = "version"
)

var log = logging.MustGetLogger("REPO")

// ErrRepoVersion is returned when the data directory was written by a
// newer release.
var ErrRepoVersion = errors.New("unsupported data directory version")

// Repo is the wallet data directory. It holds the multisig.conf file, the
// wallet directory with the key file and commitment, and the sqlite
// database of spend sessions.
type Repo struct {
	db      database.Database
	dataDir string
}

// NewRepo opens the data directory, creating and migrating it as needed.
func NewRepo(dataDir string) (*Repo, error) {
	return newRepo(dataDir, false)
}

// DB returns the database implementation.
func (r *Repo) DB() database.Database {
	return r.db
}

// DataDir returns the data directory associated with this repo.
func (r *Repo) DataDir() string {
	return r.dataDir
}

// Version returns the repo version read from disk.
func (r *Repo) Version() (int, error) {
	return readVersion(r.dataDir)
}

// Close closes the database.
func (r *Repo) Close() {
	if err := r.db.Close(); err != nil {
		log.Errorf("Error closing database: %s", err)
	}
}

// DestroyRepo deletes the entire directory. Do NOT use this unless you are
// positive you want to wipe all data.
func (r *Repo) DestroyRepo() error {
	if err := r.db.Close(); err != nil {
		return err
	}
	return os.RemoveAll(r.dataDir)
}

func readVersion(dataDir string) (int, error) {
	b, err := ioutil.ReadFile(path.Join(dataDir, versionFileName))
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(b)))
}

func writeVersion(dataDir string, version int) error {
	return ioutil.WriteFile(path.Join(dataDir, versionFileName), []byte(strconv.Itoa(version)), 0644)
}

func newRepo(dataDir string, inMemoryDB bool) (*Repo, error) {
	if err := checkWriteable(dataDir); err != nil {
		return nil, err
	}

	version, err := readVersion(dataDir)
	isNew := os.IsNotExist(err)
	if err != nil && !isNew {
		return nil, errors.Wrap(err, "read repo version")
	}
	if version > repoVersion {
		return nil, errors.Wrapf(ErrRepoVersion, "%s is version %d, this build supports %d", dataDir, version, repoVersion)
	}

	open := ffsqlite.NewFFSqliteDB
	if inMemoryDB {
		open = ffsqlite.NewFFMemoryDB
	}
	db, err := open(dataDir)
	if err != nil {
		return nil, err
	}
	if err := autoMigrateDatabase(db); err != nil {
		db.Close()
		return nil, err
	}

	if isNew || version < repoVersion {
		if err := writeVersion(dataDir, repoVersion); err != nil {
			db.Close()
			return nil, err
		}
		if isNew {
			log.Infof("Initialized new data directory at %s", dataDir)
		}
	}
	return &Repo{dataDir: dataDir, db: db}, nil
}

// checkWriteable creates dir if needed and confirms a file can be written
// inside it.
func checkWriteable(dir string) error {
	if err := os.MkdirAll(dir, 0700); err != nil {
		if os.IsPermission(err) {
			return errors.Errorf("cannot create %s, incorrect permissions", dir)
		}
		return err
	}
	f, err := ioutil.TempFile(dir, ".writeable")
	if err != nil {
		if os.IsPermission(err) {
			return errors.Errorf("%s is not writeable by the current user", dir)
		}
		return errors.Wrapf(err, "check %s is writeable", dir)
	}
	f.Close()
	return os.Remove(f.Name())
}

func autoMigrateDatabase(db database.Database) error {
	return db.Update(func(tx database.Tx) error {
		for _, m := range []interface{}{
			&models.SpendSession{},
			&models.Broadcast{},
			&models.Event{},
		} {
			if err := tx.Migrate(m); err != nil {
				return err
			}
		}
		return nil
	})
}
