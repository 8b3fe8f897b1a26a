// Package oracle is the boundary to the bitcoin node. It looks up UTXOs,
// broadcasts transactions and answers wallet queries. Nothing here retries;
// callers decide what to do on failure.
package oracle

import (
	"context"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcutil"
	"github.com/cpacia/multisig/txbuilder"
	"github.com/pkg/errors"
	"time"
)

var (
	// ErrNotFound means the requested output or transaction is unknown to
	// the node or already spent.
	ErrNotFound = errors.New("not found")

	// ErrRejected means the node refused to accept a transaction.
	ErrRejected = errors.New("transaction rejected")

	// ErrDecoding means the node's reply could not be decoded.
	ErrDecoding = errors.New("malformed node response")
)

// BlockchainInfo is the node's view of the chain.
type BlockchainInfo struct {
	Chain                string
	Blocks               int64
	Headers              int64
	BestBlockHash        string
	VerificationProgress float64
	Pruned               bool
}

// UnspentOutput is an output held by the node's wallet.
type UnspentOutput struct {
	TxID          chainhash.Hash
	Vout          uint32
	Address       string
	ScriptPubKey  []byte
	Amount        btcutil.Amount
	Confirmations int64
}

// WalletTransaction is a transaction known to the node's wallet.
type WalletTransaction struct {
	TxID          chainhash.Hash
	Amount        btcutil.Amount
	Fee           btcutil.Amount
	Confirmations int64
	BlockHash     string
	Time          time.Time
	Raw           []byte
}

// Oracle is the blockchain collaborator used by the node.
type Oracle interface {
	// GetUTXO returns the unspent output at txid:index. ErrNotFound is
	// returned if it does not exist or has been spent.
	GetUTXO(ctx context.Context, txid chainhash.Hash, index uint32) (txbuilder.UTXOReference, error)

	// Broadcast submits a serialized transaction and returns its txid.
	// ErrRejected is returned if the node refuses it.
	Broadcast(ctx context.Context, raw []byte) (chainhash.Hash, error)

	// GetBalance returns the node wallet's confirmed balance.
	GetBalance(ctx context.Context) (btcutil.Amount, error)

	// GetNewAddress returns a fresh bech32 address from the node wallet.
	GetNewAddress(ctx context.Context, label string) (string, error)

	GetBlockchainInfo(ctx context.Context) (*BlockchainInfo, error)

	GetBlockCount(ctx context.Context) (int64, error)

	// ListUnspent lists wallet outputs with confirmations in
	// [minConf, maxConf], optionally filtered by address.
	ListUnspent(ctx context.Context, minConf, maxConf int, addresses []string) ([]UnspentOutput, error)

	// GetTransaction returns a wallet transaction. ErrNotFound is returned
	// if the wallet does not know it.
	GetTransaction(ctx context.Context, txid chainhash.Hash) (*WalletTransaction, error)
}
