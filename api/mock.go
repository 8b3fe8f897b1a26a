package api

import (
	"context"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/cpacia/multisig/events"
	"github.com/cpacia/multisig/models"
	"github.com/cpacia/multisig/multisig"
)

type mockNode struct {
	getCommitmentFunc   func() (*multisig.Commitment, error)
	getPublicKeysFunc   func() ([][]byte, error)
	statusFunc          func(ctx context.Context) (*models.WalletStatus, error)
	beginSpendFunc      func(ctx context.Context, txid chainhash.Hash, vout uint32, destination string, amount int64) (*models.SpendSession, error)
	signSpendFunc       func(id models.SpendID, signerIndex int) (*models.SpendSession, error)
	addSignatureFunc    func(id models.SpendID, signerIndex int, sigHex string) (*models.SpendSession, error)
	finalizeSpendFunc   func(id models.SpendID) (*models.SpendSession, error)
	broadcastSpendFunc  func(ctx context.Context, id models.SpendID) (*models.SpendSession, error)
	cancelSpendFunc     func(id models.SpendID, reason string) (*models.SpendSession, error)
	getSpendFunc        func(id models.SpendID) (*models.SpendSession, error)
	getSpendHistoryFunc func(id models.SpendID) ([]models.Event, error)
	listSpendsFunc      func() ([]models.SpendSession, error)
	exportSpendPSBTFunc func(id models.SpendID) (string, error)
	importSpendPSBTFunc func(id models.SpendID, b64 string) (*models.SpendSession, error)
	subscribeEventFunc  func(event interface{}, opts ...events.SubscriptionOpt) (events.Subscription, error)
}

func (m *mockNode) GetCommitment() (*multisig.Commitment, error) {
	return m.getCommitmentFunc()
}

func (m *mockNode) GetPublicKeys() ([][]byte, error) {
	return m.getPublicKeysFunc()
}

func (m *mockNode) Status(ctx context.Context) (*models.WalletStatus, error) {
	return m.statusFunc(ctx)
}

func (m *mockNode) BeginSpend(ctx context.Context, txid chainhash.Hash, vout uint32, destination string, amount int64) (*models.SpendSession, error) {
	return m.beginSpendFunc(ctx, txid, vout, destination, amount)
}

func (m *mockNode) SignSpend(id models.SpendID, signerIndex int) (*models.SpendSession, error) {
	return m.signSpendFunc(id, signerIndex)
}

func (m *mockNode) AddSignature(id models.SpendID, signerIndex int, sigHex string) (*models.SpendSession, error) {
	return m.addSignatureFunc(id, signerIndex, sigHex)
}

func (m *mockNode) FinalizeSpend(id models.SpendID) (*models.SpendSession, error) {
	return m.finalizeSpendFunc(id)
}

func (m *mockNode) BroadcastSpend(ctx context.Context, id models.SpendID) (*models.SpendSession, error) {
	return m.broadcastSpendFunc(ctx, id)
}

func (m *mockNode) CancelSpend(id models.SpendID, reason string) (*models.SpendSession, error) {
	return m.cancelSpendFunc(id, reason)
}

func (m *mockNode) GetSpend(id models.SpendID) (*models.SpendSession, error) {
	return m.getSpendFunc(id)
}

func (m *mockNode) GetSpendHistory(id models.SpendID) ([]models.Event, error) {
	return m.getSpendHistoryFunc(id)
}

func (m *mockNode) ListSpends() ([]models.SpendSession, error) {
	return m.listSpendsFunc()
}

func (m *mockNode) ExportSpendPSBT(id models.SpendID) (string, error) {
	return m.exportSpendPSBTFunc(id)
}

func (m *mockNode) ImportSpendPSBT(id models.SpendID, b64 string) (*models.SpendSession, error) {
	return m.importSpendPSBTFunc(id, b64)
}

func (m *mockNode) SubscribeEvent(event interface{}, opts ...events.SubscriptionOpt) (events.Subscription, error) {
	return m.subscribeEventFunc(event, opts...)
}
