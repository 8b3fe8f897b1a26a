package ffsqlite

import (
	"encoding/json"
	"github.com/cpacia/multisig/multisig"
	"io/ioutil"
	"os"
	"path/filepath"
	"sync"
)

const (
	// KeyFile is the filename of the plaintext key file on disk.
	KeyFile = "keys.json"
	// SealedKeyFile is the filename of the passphrase sealed key file.
	SealedKeyFile = "keys.sealed"
	// CommitmentFile is the filename of the multisig commitment on disk.
	CommitmentFile = "multisig.json"
)

// FlatFileDB represents the wallet directory that holds the key file and
// the multisig commitment. At most one of the plaintext and sealed key
// files exists at a time.
type FlatFileDB struct {
	rootDir string

	mtx sync.RWMutex
}

// NewFlatFileDB returns a new wallet directory. If one does not already
// exist at the given location, it will be created.
func NewFlatFileDB(rootDir string) (*FlatFileDB, error) {
	fdb := &FlatFileDB{rootDir: rootDir}

	if _, err := os.Stat(rootDir); os.IsNotExist(err) {
		if err := os.MkdirAll(rootDir, 0700); err != nil {
			return nil, err
		}
	}

	return fdb, nil
}

// Path returns the path to the wallet directory.
func (fdb *FlatFileDB) Path() string {
	return fdb.rootDir
}

// GetKeyFile loads the key file from disk. The sealed file takes
// precedence if both exist.
func (fdb *FlatFileDB) GetKeyFile() ([]byte, bool, error) {
	fdb.mtx.RLock()
	defer fdb.mtx.RUnlock()

	raw, err := ioutil.ReadFile(fdb.dataPathJoin(SealedKeyFile))
	if err == nil {
		return raw, true, nil
	}
	if !os.IsNotExist(err) {
		return nil, false, err
	}
	raw, err = ioutil.ReadFile(fdb.dataPathJoin(KeyFile))
	if err != nil {
		return nil, false, err
	}
	return raw, false, nil
}

// SetKeyFile saves the key file to disk and removes the file of the other
// form.
func (fdb *FlatFileDB) SetKeyFile(raw []byte, sealed bool) error {
	fdb.mtx.Lock()
	defer fdb.mtx.Unlock()

	name, other := KeyFile, SealedKeyFile
	if sealed {
		name, other = SealedKeyFile, KeyFile
	}
	if err := writeFileAtomic(fdb.dataPathJoin(name), raw, 0600); err != nil {
		return err
	}
	if err := os.Remove(fdb.dataPathJoin(other)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// deleteKeyFile removes both forms of the key file.
func (fdb *FlatFileDB) deleteKeyFile() error {
	fdb.mtx.Lock()
	defer fdb.mtx.Unlock()

	for _, name := range []string{KeyFile, SealedKeyFile} {
		if err := os.Remove(fdb.dataPathJoin(name)); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

// GetCommitment loads the commitment from disk and returns it.
func (fdb *FlatFileDB) GetCommitment() (*multisig.Commitment, error) {
	fdb.mtx.RLock()
	defer fdb.mtx.RUnlock()

	raw, err := ioutil.ReadFile(fdb.dataPathJoin(CommitmentFile))
	if err != nil {
		return nil, err
	}
	c := new(multisig.Commitment)
	if err := json.Unmarshal(raw, c); err != nil {
		return nil, err
	}
	return c, nil
}

// SetCommitment saves the commitment to disk.
func (fdb *FlatFileDB) SetCommitment(c *multisig.Commitment) error {
	fdb.mtx.Lock()
	defer fdb.mtx.Unlock()

	out, err := json.MarshalIndent(c, "", "    ")
	if err != nil {
		return err
	}
	return writeFileAtomic(fdb.dataPathJoin(CommitmentFile), out, 0644)
}

// deleteCommitment removes the commitment file.
func (fdb *FlatFileDB) deleteCommitment() error {
	fdb.mtx.Lock()
	defer fdb.mtx.Unlock()

	if err := os.Remove(fdb.dataPathJoin(CommitmentFile)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// dataPathJoin is a helper function which joins the pathArgs to the service's
// dataPath and returns the result
func (fdb *FlatFileDB) dataPathJoin(pathArgs ...string) string {
	allPathArgs := append([]string{fdb.rootDir}, pathArgs...)
	return filepath.Join(allPathArgs...)
}

func writeFileAtomic(name string, data []byte, perm os.FileMode) error {
	tmp := name + ".tmp"
	if err := ioutil.WriteFile(tmp, data, perm); err != nil {
		return err
	}
	return os.Rename(tmp, name)
}
