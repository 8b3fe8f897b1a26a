package core

import (
	"context"
	"encoding/hex"
	"fmt"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/cpacia/multisig/core/coreiface"
	"github.com/cpacia/multisig/database"
	"github.com/cpacia/multisig/events"
	"github.com/cpacia/multisig/models"
	"github.com/cpacia/multisig/txbuilder"
	"github.com/jinzhu/gorm"
	"github.com/pkg/errors"
	"time"
)

// Event names recorded in the spend history.
const (
	EventStarted        = "started"
	EventSignatureAdded = "signature_added"
	EventFinalized      = "finalized"
	EventBroadcast      = "broadcast"
	EventBroadcastError = "broadcast_error"
	EventFailed         = "failed"
)

// BeginSpend looks up the UTXO at txid:vout, checks it is locked to the
// saved commitment and opens a spend session paying amount to destination.
// The remainder of the UTXO is the fee.
//
// The session ID is the txid of the unsigned transaction, so beginning the
// same spend twice returns the existing session.
func (n *MultisigNode) BeginSpend(ctx context.Context, txid chainhash.Hash, vout uint32, destination string, amount int64) (*models.SpendSession, error) {
	c, err := n.GetCommitment()
	if err != nil {
		return nil, err
	}

	utxo, err := n.oracle.GetUTXO(ctx, txid, vout)
	if err != nil {
		return nil, classify(err)
	}
	if utxo.Confirmations < n.minConf {
		return nil, coreiface.Wrap(coreiface.ErrBadRequest, errors.Errorf("utxo %s:%d has %d confirmations, %d required", txid, vout, utxo.Confirmations, n.minConf))
	}

	unsigned, err := txbuilder.Begin(txbuilder.SpendRequest{
		UTXO:        utxo,
		Destination: destination,
		SendAmount:  amount,
	}, c, txbuilder.MinFeeRate(n.minFeeRate), txbuilder.Params(n.params))
	if err != nil {
		return nil, classify(err)
	}

	session := &models.SpendSession{
		ID:                models.SpendID(unsigned.TxHash().String()),
		CommitmentAddress: c.Address,
		UTXOTxID:          utxo.TxID.String(),
		UTXOIndex:         utxo.OutputIndex,
		UTXOAmount:        utxo.Amount,
		UTXOScript:        hex.EncodeToString(utxo.LockingScript),
		UTXOConfirmations: utxo.Confirmations,
		Destination:       destination,
		SendAmount:        amount,
		Fee:               unsigned.Fee,
		UnsignedTx:        hex.EncodeToString(unsigned.Bytes()),
		State:             txbuilder.StateUnsigned.String(),
		CreatedAt:         time.Now(),
	}

	err = n.repo.DB().Update(func(tx database.Tx) error {
		var existing models.SpendSession
		err := tx.Read().Where("id = ?", session.ID.String()).First(&existing).Error
		if err == nil && existing.State != txbuilder.StateFailed.String() {
			session = &existing
			return nil
		} else if err != nil && !gorm.IsRecordNotFoundError(err) {
			return err
		}

		if err := tx.Save(session); err != nil {
			return err
		}
		detail := fmt.Sprintf("%d sats to %s, fee %d", amount, destination, unsigned.Fee)
		if err := recordEvent(tx, session.ID, EventStarted, detail); err != nil {
			return err
		}
		started := &events.SpendStarted{
			SpendID:     session.ID,
			Address:     c.Address,
			Destination: destination,
			Amount:      amount,
			Fee:         unsigned.Fee,
		}
		tx.RegisterCommitHook(func() {
			n.eventBus.Emit(started)
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Infof("Spend %s started: %d sats from %s to %s", session.ID, amount, c.Address, destination)
	return session, nil
}

// SignSpend signs the spend with the local key at signerIndex.
func (n *MultisigNode) SignSpend(id models.SpendID, signerIndex int) (*models.SpendSession, error) {
	var session *models.SpendSession
	err := n.repo.DB().Update(func(tx database.Tx) error {
		var (
			set *txbuilder.PartialSignatureSet
			err error
		)
		session, _, set, err = n.loadOpenSpend(tx, id)
		if err != nil {
			return err
		}
		ring, err := n.loadKeyRing(tx)
		if err != nil {
			return err
		}
		signer, err := ring.Signer(signerIndex)
		if err != nil {
			return coreiface.Wrap(coreiface.ErrBadRequest, err)
		}
		if _, err := set.Sign(signerIndex, signer); err != nil {
			return err
		}
		return n.saveSignature(tx, session, set, signerIndex)
	})
	if err != nil {
		return nil, classify(err)
	}
	return session, nil
}

// AddSignature adds a cosigner's hex encoded signature for signerIndex.
// The signature is checked against the signer's public key before it is
// stored.
func (n *MultisigNode) AddSignature(id models.SpendID, signerIndex int, sigHex string) (*models.SpendSession, error) {
	sig, err := hex.DecodeString(sigHex)
	if err != nil {
		return nil, classify(errors.Wrapf(txbuilder.ErrInvalidSignature, "signer %d: %s", signerIndex, err))
	}

	var session *models.SpendSession
	err = n.repo.DB().Update(func(tx database.Tx) error {
		var (
			set *txbuilder.PartialSignatureSet
			err error
		)
		session, _, set, err = n.loadOpenSpend(tx, id)
		if err != nil {
			return err
		}
		if err := set.AddSignature(signerIndex, sig); err != nil {
			return err
		}
		return n.saveSignature(tx, session, set, signerIndex)
	})
	if err != nil {
		return nil, classify(err)
	}
	return session, nil
}

// FinalizeSpend assembles the witness once threshold signatures are
// present. Finalizing an already finalized spend returns it unchanged.
func (n *MultisigNode) FinalizeSpend(id models.SpendID) (*models.SpendSession, error) {
	var session *models.SpendSession
	err := n.repo.DB().Update(func(tx database.Tx) error {
		var err error
		session, err = n.finalizeSpend(tx, id)
		return err
	})
	if err != nil {
		return nil, classify(err)
	}
	return session, nil
}

func (n *MultisigNode) finalizeSpend(tx database.Tx, id models.SpendID) (*models.SpendSession, error) {
	session, err := getSpend(tx, id)
	if err != nil {
		return nil, err
	}
	if session.State == txbuilder.StateFinalized.String() {
		return session, nil
	}

	session, unsigned, set, err := n.loadOpenSpend(tx, id)
	if err != nil {
		return nil, err
	}
	signed, err := txbuilder.Finalize(unsigned, set)
	if err != nil {
		return nil, err
	}

	session.State = set.State().String()
	session.SignedTx = hex.EncodeToString(signed.Bytes)
	session.FinalTxID = signed.TxID.String()
	if err := tx.Save(session); err != nil {
		return nil, err
	}
	if err := recordEvent(tx, id, EventFinalized, session.FinalTxID); err != nil {
		return nil, err
	}
	finalized := &events.SpendFinalized{
		SpendID: id,
		TxID:    session.FinalTxID,
	}
	tx.RegisterCommitHook(func() {
		n.eventBus.Emit(finalized)
		log.Infof("Spend %s finalized as %s", id, finalized.TxID)
	})
	return session, nil
}

// BroadcastSpend submits the signed transaction to the bitcoin node. A
// fully signed spend is finalized first. A rejected broadcast is recorded
// in the history but leaves the spend finalized so it can be retried.
func (n *MultisigNode) BroadcastSpend(ctx context.Context, id models.SpendID) (*models.SpendSession, error) {
	var session *models.SpendSession
	err := n.repo.DB().Update(func(tx database.Tx) error {
		var err error
		session, err = n.finalizeSpend(tx, id)
		return err
	})
	if err != nil {
		return nil, classify(err)
	}

	raw, err := hex.DecodeString(session.SignedTx)
	if err != nil {
		return nil, err
	}
	txid, err := n.oracle.Broadcast(ctx, raw)
	if err != nil {
		log.Errorf("Broadcast of spend %s failed: %s", id, err)
		dbErr := n.repo.DB().Update(func(tx database.Tx) error {
			return recordEvent(tx, id, EventBroadcastError, err.Error())
		})
		if dbErr != nil {
			log.Errorf("Error recording broadcast failure for spend %s: %s", id, dbErr)
		}
		return nil, classify(err)
	}

	height, err := n.oracle.GetBlockCount(ctx)
	if err != nil {
		log.Warningf("Error fetching block height for spend %s: %s", id, err)
	}

	err = n.repo.DB().Update(func(tx database.Tx) error {
		if err := tx.Save(&models.Broadcast{
			TxID:      txid.String(),
			SpendID:   id,
			Raw:       session.SignedTx,
			Timestamp: time.Now(),
			Height:    height,
		}); err != nil {
			return err
		}
		if err := recordEvent(tx, id, EventBroadcast, txid.String()); err != nil {
			return err
		}
		broadcast := &events.SpendBroadcast{
			SpendID: id,
			TxID:    txid.String(),
		}
		tx.RegisterCommitHook(func() {
			n.eventBus.Emit(broadcast)
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Infof("Broadcast spend %s as %s", id, txid)
	return session, nil
}

// CancelSpend moves an open spend to the failed state. Collected
// signatures are kept for inspection but the spend can no longer be
// finalized. A new spend of the same UTXO may then be started.
func (n *MultisigNode) CancelSpend(id models.SpendID, reason string) (*models.SpendSession, error) {
	if reason == "" {
		reason = "canceled"
	}
	var session *models.SpendSession
	err := n.repo.DB().Update(func(tx database.Tx) error {
		var (
			set *txbuilder.PartialSignatureSet
			err error
		)
		session, _, set, err = n.loadOpenSpend(tx, id)
		if err != nil {
			return err
		}
		set.Fail(reason)
		session.State = set.State().String()
		session.FailureReason = set.Failure()
		if err := tx.Save(session); err != nil {
			return err
		}
		if err := recordEvent(tx, id, EventFailed, reason); err != nil {
			return err
		}
		failed := &events.SpendFailed{
			SpendID: id,
			Reason:  reason,
		}
		tx.RegisterCommitHook(func() {
			n.eventBus.Emit(failed)
		})
		return nil
	})
	if err != nil {
		return nil, classify(err)
	}
	log.Infof("Spend %s canceled: %s", id, reason)
	return session, nil
}

// GetSpend returns the spend session with the given ID.
func (n *MultisigNode) GetSpend(id models.SpendID) (*models.SpendSession, error) {
	var session *models.SpendSession
	err := n.repo.DB().View(func(tx database.Tx) error {
		var err error
		session, err = getSpend(tx, id)
		return err
	})
	if err != nil {
		return nil, classify(err)
	}
	return session, nil
}

// GetSpendHistory returns the recorded events of a spend, oldest first.
func (n *MultisigNode) GetSpendHistory(id models.SpendID) ([]models.Event, error) {
	var history []models.Event
	err := n.repo.DB().View(func(tx database.Tx) error {
		if _, err := getSpend(tx, id); err != nil {
			return err
		}
		return tx.Read().Where("spend_id = ?", id.String()).Order("id asc").Find(&history).Error
	})
	if err != nil {
		return nil, classify(err)
	}
	return history, nil
}

// ListSpends returns every spend session, newest first.
func (n *MultisigNode) ListSpends() ([]models.SpendSession, error) {
	var sessions []models.SpendSession
	err := n.repo.DB().View(func(tx database.Tx) error {
		return tx.Read().Order("created_at desc").Find(&sessions).Error
	})
	return sessions, err
}

// ExportSpendPSBT returns the spend as a base64 PSBT holding the
// signatures collected so far, for signing with external software.
func (n *MultisigNode) ExportSpendPSBT(id models.SpendID) (string, error) {
	var b64 string
	err := n.repo.DB().View(func(tx database.Tx) error {
		_, unsigned, set, err := n.loadSpend(tx, id)
		if err != nil {
			return err
		}
		b64, err = txbuilder.ExportPSBT(unsigned, set)
		return err
	})
	if err != nil {
		return "", classify(err)
	}
	return b64, nil
}

// ImportSpendPSBT merges the partial signatures of a base64 PSBT into the
// spend. Signatures the spend already holds are ignored.
func (n *MultisigNode) ImportSpendPSBT(id models.SpendID, b64 string) (*models.SpendSession, error) {
	var session *models.SpendSession
	err := n.repo.DB().Update(func(tx database.Tx) error {
		var (
			unsigned *txbuilder.UnsignedTx
			set      *txbuilder.PartialSignatureSet
			err      error
		)
		session, unsigned, set, err = n.loadOpenSpend(tx, id)
		if err != nil {
			return err
		}
		imported, err := txbuilder.ImportPSBT(b64, unsigned)
		if err != nil {
			return err
		}

		before := make(map[int]bool)
		for _, i := range set.Indices() {
			before[i] = true
		}
		if err := set.Merge(imported); err != nil {
			return err
		}
		for _, i := range set.Indices() {
			if before[i] {
				continue
			}
			if err := n.saveSignature(tx, session, set, i); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, classify(err)
	}
	return session, nil
}

// saveSignature persists the set's signatures and state after the
// signature at signerIndex was accepted.
func (n *MultisigNode) saveSignature(tx database.Tx, session *models.SpendSession, set *txbuilder.PartialSignatureSet, signerIndex int) error {
	sigs := make(map[int][]byte)
	for _, i := range set.Indices() {
		sig, _ := set.Signature(i)
		sigs[i] = sig
	}
	if err := session.PutSignatures(sigs); err != nil {
		return err
	}
	session.State = set.State().String()
	if err := tx.Save(session); err != nil {
		return err
	}

	detail := fmt.Sprintf("signer %d (%d of %d)", signerIndex, set.Count(), set.Threshold())
	if err := recordEvent(tx, session.ID, EventSignatureAdded, detail); err != nil {
		return err
	}
	added := &events.SignatureAdded{
		SpendID:     session.ID,
		SignerIndex: signerIndex,
		Count:       set.Count(),
		Threshold:   set.Threshold(),
		Complete:    set.Complete(),
	}
	tx.RegisterCommitHook(func() {
		n.eventBus.Emit(added)
		log.Infof("Spend %s: signature from signer %d (%d of %d)", added.SpendID, added.SignerIndex, added.Count, added.Threshold)
		if added.Complete {
			log.Infof("Spend %s is ready to finalize", added.SpendID)
		}
	})
	return nil
}

// loadOpenSpend is loadSpend for sessions which may still be modified.
func (n *MultisigNode) loadOpenSpend(tx database.Tx, id models.SpendID) (*models.SpendSession, *txbuilder.UnsignedTx, *txbuilder.PartialSignatureSet, error) {
	session, unsigned, set, err := n.loadSpend(tx, id)
	if err != nil {
		return nil, nil, nil, err
	}
	switch session.State {
	case txbuilder.StateFinalized.String():
		return nil, nil, nil, errors.Wrapf(txbuilder.ErrClosed, "spend %s is finalized", id)
	case txbuilder.StateFailed.String():
		return nil, nil, nil, errors.Wrapf(txbuilder.ErrClosed, "spend %s failed: %s", id, session.FailureReason)
	}
	return session, unsigned, set, nil
}

// loadSpend rebuilds the unsigned transaction and signature set of a
// session. Every stored signature is verified again on the way in.
func (n *MultisigNode) loadSpend(tx database.Tx, id models.SpendID) (*models.SpendSession, *txbuilder.UnsignedTx, *txbuilder.PartialSignatureSet, error) {
	session, err := getSpend(tx, id)
	if err != nil {
		return nil, nil, nil, err
	}
	c, err := n.loadCommitment(tx)
	if err != nil {
		return nil, nil, nil, err
	}
	if c.Address != session.CommitmentAddress {
		return nil, nil, nil, errors.Wrapf(txbuilder.ErrCommitmentMismatch, "spend %s is from %s, wallet address is %s", id, session.CommitmentAddress, c.Address)
	}

	utxoHash, err := chainhash.NewHashFromStr(session.UTXOTxID)
	if err != nil {
		return nil, nil, nil, err
	}
	script, err := hex.DecodeString(session.UTXOScript)
	if err != nil {
		return nil, nil, nil, err
	}
	raw, err := session.UnsignedTxBytes()
	if err != nil {
		return nil, nil, nil, err
	}
	unsigned, err := txbuilder.Load(raw, txbuilder.UTXOReference{
		TxID:          *utxoHash,
		OutputIndex:   session.UTXOIndex,
		Amount:        session.UTXOAmount,
		LockingScript: script,
		Confirmations: session.UTXOConfirmations,
	}, c, n.params)
	if err != nil {
		return nil, nil, nil, err
	}

	set, err := txbuilder.NewSignatureSet(unsigned)
	if err != nil {
		return nil, nil, nil, err
	}
	sigs, err := session.GetSignatures()
	if err != nil {
		return nil, nil, nil, err
	}
	for i, sig := range sigs {
		if err := set.AddSignature(i, sig); err != nil {
			return nil, nil, nil, err
		}
	}
	if session.State == txbuilder.StateFailed.String() {
		set.Fail(session.FailureReason)
	}
	return session, unsigned, set, nil
}

func getSpend(tx database.Tx, id models.SpendID) (*models.SpendSession, error) {
	var session models.SpendSession
	err := tx.Read().Where("id = ?", id.String()).First(&session).Error
	if gorm.IsRecordNotFoundError(err) {
		return nil, errors.Wrapf(models.ErrSpendNotFound, "spend %s", id)
	} else if err != nil {
		return nil, err
	}
	return &session, nil
}

func recordEvent(tx database.Tx, id models.SpendID, name, detail string) error {
	return tx.Save(&models.Event{
		SpendID: id,
		Name:    name,
		Detail:  detail,
		Time:    time.Now(),
	})
}
