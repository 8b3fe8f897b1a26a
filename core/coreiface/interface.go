package coreiface

import (
	"context"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/cpacia/multisig/events"
	"github.com/cpacia/multisig/models"
	"github.com/cpacia/multisig/multisig"
)

// CoreIface enumerates the interface of the MultisigNode object in the Core package.
// We primarily use this to get around circular imports though it should serve as the API
// contract for the Core package.
type CoreIface interface {
	// Wallet
	GetCommitment() (*multisig.Commitment, error)
	GetPublicKeys() ([][]byte, error)
	Status(ctx context.Context) (*models.WalletStatus, error)

	// Spends
	BeginSpend(ctx context.Context, txid chainhash.Hash, vout uint32, destination string, amount int64) (*models.SpendSession, error)
	SignSpend(id models.SpendID, signerIndex int) (*models.SpendSession, error)
	AddSignature(id models.SpendID, signerIndex int, sigHex string) (*models.SpendSession, error)
	FinalizeSpend(id models.SpendID) (*models.SpendSession, error)
	BroadcastSpend(ctx context.Context, id models.SpendID) (*models.SpendSession, error)
	CancelSpend(id models.SpendID, reason string) (*models.SpendSession, error)
	GetSpend(id models.SpendID) (*models.SpendSession, error)
	GetSpendHistory(id models.SpendID) ([]models.Event, error)
	ListSpends() ([]models.SpendSession, error)
	ExportSpendPSBT(id models.SpendID) (string, error)
	ImportSpendPSBT(id models.SpendID, b64 string) (*models.SpendSession, error)

	// Events
	SubscribeEvent(event interface{}, opts ...events.SubscriptionOpt) (events.Subscription, error)
}
