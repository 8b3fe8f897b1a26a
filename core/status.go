package core

import (
	"context"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/cpacia/multisig/database"
	"github.com/cpacia/multisig/models"
	"github.com/cpacia/multisig/multisig"
	"github.com/cpacia/multisig/oracle"
	"github.com/cpacia/multisig/txbuilder"
	"github.com/cpacia/multisig/version"
	"github.com/pkg/errors"
	"os"
	"sort"
)

const (
	// recentUTXOs is the number of multisig outputs listed in the status.
	recentUTXOs = 3

	recentBroadcasts = 5
)

// Status reports the node's view of the chain alongside the local wallet
// state. Node failures do not fail the call; they are reported in
// NodeError so the local half of the status is still useful when bitcoind
// is down.
func (n *MultisigNode) Status(ctx context.Context) (*models.WalletStatus, error) {
	status := &models.WalletStatus{
		Version:          version.UserAgent(),
		Network:          n.params.Name,
		RecentUTXOs:      []models.UTXO{},
		RecentBroadcasts: []models.Broadcast{},
	}

	var c *multisig.Commitment
	err := n.repo.DB().View(func(tx database.Tx) error {
		_, sealed, err := tx.GetKeyFile()
		if err == nil {
			status.KeysPresent = true
			status.KeysSealed = sealed
		} else if !os.IsNotExist(err) {
			return err
		}

		c, err = tx.GetCommitment()
		if err != nil && !os.IsNotExist(err) {
			return err
		}

		var open int
		err = tx.Read().Model(&models.SpendSession{}).
			Where("state NOT IN (?)", []string{txbuilder.StateFinalized.String(), txbuilder.StateFailed.String()}).
			Count(&open).Error
		status.OpenSpends = open
		if err != nil {
			return err
		}

		return tx.Read().Order("timestamp desc").Limit(recentBroadcasts).Find(&status.RecentBroadcasts).Error
	})
	if err != nil {
		return nil, err
	}

	if c != nil {
		status.CommitmentPresent = true
		status.Address = c.Address
		if policy, err := c.Policy(); err == nil {
			status.Threshold = policy.Threshold
			status.Total = policy.Total
		}
	}

	info, err := n.oracle.GetBlockchainInfo(ctx)
	if err != nil {
		status.NodeError = err.Error()
		return status, nil
	}
	status.Chain = info.Chain
	status.Blocks = info.Blocks
	status.Headers = info.Headers
	status.SyncProgress = info.VerificationProgress
	status.Pruned = info.Pruned

	balance, err := n.oracle.GetBalance(ctx)
	if err != nil {
		status.NodeError = err.Error()
		return status, nil
	}
	status.NodeBalance = int64(balance)

	for i, b := range status.RecentBroadcasts {
		txid, err := chainhash.NewHashFromStr(b.TxID)
		if err != nil {
			return nil, err
		}
		wtx, err := n.oracle.GetTransaction(ctx, *txid)
		if errors.Is(err, oracle.ErrNotFound) {
			continue
		} else if err != nil {
			status.NodeError = err.Error()
			return status, nil
		}
		status.RecentBroadcasts[i].Confirmations = wtx.Confirmations
	}

	if c == nil {
		return status, nil
	}
	unspent, err := n.oracle.ListUnspent(ctx, 0, 9999999, []string{c.Address})
	if err != nil {
		status.NodeError = err.Error()
		return status, nil
	}
	sort.Slice(unspent, func(i, j int) bool {
		return unspent[i].Confirmations < unspent[j].Confirmations
	})
	for i, u := range unspent {
		status.Balance += int64(u.Amount)
		if i < recentUTXOs {
			status.RecentUTXOs = append(status.RecentUTXOs, models.UTXO{
				TxID:          u.TxID.String(),
				Vout:          u.Vout,
				Amount:        int64(u.Amount),
				Confirmations: u.Confirmations,
			})
		}
	}
	return status, nil
}
