package core

import (
	"github.com/cpacia/multisig/core/coreiface"
	"github.com/cpacia/multisig/database"
	"github.com/cpacia/multisig/keys"
	"github.com/cpacia/multisig/multisig"
	"github.com/pkg/errors"
	"os"
	"time"
)

// InitWallet generates a new key ring, derives the multisig commitment
// from its public keys and saves both to the data directory. If passphrase
// is not empty the key file is sealed with it. An existing key file is
// only replaced when overwrite is set.
func (n *MultisigNode) InitWallet(passphrase string, overwrite bool) (*multisig.Commitment, error) {
	ring, err := keys.GenerateDefault(keys.SchemeSize)
	if err != nil {
		return nil, err
	}
	return n.saveKeyRing(ring, passphrase, overwrite)
}

// ImportWIFs restores the key ring from WIF encoded private keys, in
// signer order, and rebuilds the commitment from it.
func (n *MultisigNode) ImportWIFs(wifs []string, passphrase string, overwrite bool) (*multisig.Commitment, error) {
	ring, err := keys.Restore(wifs, n.params)
	if err != nil {
		return nil, classify(err)
	}
	return n.saveKeyRing(ring, passphrase, overwrite)
}

// ImportMnemonics restores the key ring from the paper backup phrases
// returned by BackupMnemonics.
func (n *MultisigNode) ImportMnemonics(phrases []string, passphrase string, overwrite bool) (*multisig.Commitment, error) {
	ring, err := keys.RestoreMnemonics(phrases)
	if err != nil {
		return nil, classify(err)
	}
	return n.saveKeyRing(ring, passphrase, overwrite)
}

// ImportCommitment saves a commitment built elsewhere, for example by a
// cosigner who holds none of the keys locally. The witness script must be
// a multisig script paying to the commitment's address.
func (n *MultisigNode) ImportCommitment(c *multisig.Commitment, overwrite bool) error {
	if _, err := c.Policy(); err != nil {
		return classify(err)
	}
	if err := c.CheckNetwork(n.params); err != nil {
		return classify(err)
	}
	return n.repo.DB().Update(func(tx database.Tx) error {
		if _, err := tx.GetCommitment(); err == nil && !overwrite {
			return coreiface.ErrWalletExists
		}
		return tx.SetCommitment(c)
	})
}

func (n *MultisigNode) saveKeyRing(ring *keys.KeyRing, passphrase string, overwrite bool) (*multisig.Commitment, error) {
	c, err := multisig.Derive(multisig.NewPolicy(n.threshold, ring.PublicKeys()), n.params)
	if err != nil {
		return nil, classify(err)
	}
	kf, err := ring.Export(n.params, time.Now())
	if err != nil {
		return nil, err
	}
	raw, sealed, err := encodeKeyFile(kf, passphrase)
	if err != nil {
		return nil, err
	}

	err = n.repo.DB().Update(func(tx database.Tx) error {
		if _, _, err := tx.GetKeyFile(); err == nil && !overwrite {
			return coreiface.ErrWalletExists
		}
		if err := tx.SetKeyFile(raw, sealed); err != nil {
			return err
		}
		return tx.SetCommitment(c)
	})
	if err != nil {
		return nil, err
	}
	if sealed {
		n.passphrase = passphrase
	}
	log.Infof("Saved %d-of-%d key ring for %s", n.threshold, ring.Len(), c.Address)
	return c, nil
}

// ChangePassphrase re-encodes the key file under newPassphrase. An empty
// newPassphrase stores the key file unsealed.
func (n *MultisigNode) ChangePassphrase(newPassphrase string) error {
	err := n.repo.DB().Update(func(tx database.Tx) error {
		ring, err := n.loadKeyRing(tx)
		if err != nil {
			return err
		}
		kf, err := ring.Export(n.params, time.Now())
		if err != nil {
			return err
		}
		raw, sealed, err := encodeKeyFile(kf, newPassphrase)
		if err != nil {
			return err
		}
		return tx.SetKeyFile(raw, sealed)
	})
	if err != nil {
		return err
	}
	n.passphrase = newPassphrase
	return nil
}

// ExportKeys returns the decoded key file.
func (n *MultisigNode) ExportKeys() (*keys.KeyFile, error) {
	var kf *keys.KeyFile
	err := n.repo.DB().View(func(tx database.Tx) error {
		ring, err := n.loadKeyRing(tx)
		if err != nil {
			return err
		}
		kf, err = ring.Export(n.params, time.Now())
		return err
	})
	return kf, err
}

// BackupMnemonics returns a paper backup phrase for each private key in
// signer order.
func (n *MultisigNode) BackupMnemonics() ([]string, error) {
	var phrases []string
	err := n.repo.DB().View(func(tx database.Tx) error {
		ring, err := n.loadKeyRing(tx)
		if err != nil {
			return err
		}
		phrases, err = ring.Mnemonics()
		return err
	})
	return phrases, err
}

// GetCommitment returns the saved multisig commitment.
func (n *MultisigNode) GetCommitment() (*multisig.Commitment, error) {
	var c *multisig.Commitment
	err := n.repo.DB().View(func(tx database.Tx) error {
		var err error
		c, err = n.loadCommitment(tx)
		return err
	})
	return c, err
}

// GetPublicKeys returns the public keys of the commitment in signer order.
// It does not need the key file so it works on a sealed wallet.
func (n *MultisigNode) GetPublicKeys() ([][]byte, error) {
	c, err := n.GetCommitment()
	if err != nil {
		return nil, err
	}
	_, pubKeys, err := multisig.ParseWitnessScript(c.WitnessScript)
	if err != nil {
		return nil, classify(err)
	}
	return pubKeys, nil
}

// loadCommitment reads the saved commitment and refuses one that was made
// for another network.
func (n *MultisigNode) loadCommitment(tx database.Tx) (*multisig.Commitment, error) {
	c, err := tx.GetCommitment()
	if os.IsNotExist(err) {
		return nil, coreiface.ErrNoWallet
	} else if err != nil {
		return nil, err
	}
	if err := c.CheckNetwork(n.params); err != nil {
		return nil, err
	}
	return c, nil
}

// loadKeyRing decodes the key file, opening it with the node's passphrase
// if it is sealed. The ring must match the saved commitment.
func (n *MultisigNode) loadKeyRing(tx database.Tx) (*keys.KeyRing, error) {
	raw, sealed, err := tx.GetKeyFile()
	if os.IsNotExist(err) {
		return nil, coreiface.ErrNoWallet
	} else if err != nil {
		return nil, err
	}
	if sealed {
		if n.passphrase == "" {
			return nil, coreiface.ErrLocked
		}
		raw, err = keys.Open(raw, n.passphrase)
		if err != nil {
			return nil, coreiface.Wrap(coreiface.ErrLocked, err)
		}
	}
	kf, err := keys.UnmarshalKeyFile(raw)
	if err != nil {
		return nil, err
	}
	ring, err := kf.Ring(n.params)
	if err != nil {
		return nil, err
	}

	c, err := n.loadCommitment(tx)
	if err != nil {
		return nil, err
	}
	policy, err := c.Policy()
	if err != nil {
		return nil, err
	}
	if err := c.Verify(multisig.NewPolicy(policy.Threshold, ring.PublicKeys()), n.params); err != nil {
		return nil, errors.Wrap(err, "key file does not match the saved commitment")
	}
	return ring, nil
}

func encodeKeyFile(kf *keys.KeyFile, passphrase string) ([]byte, bool, error) {
	raw, err := keys.MarshalKeyFile(kf)
	if err != nil {
		return nil, false, err
	}
	if passphrase == "" {
		return raw, false, nil
	}
	sealed, err := keys.SealDefault(raw, passphrase)
	if err != nil {
		return nil, false, err
	}
	return sealed, true, nil
}
