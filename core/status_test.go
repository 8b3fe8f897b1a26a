package core

import (
	"context"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/cpacia/multisig/txbuilder"
	"github.com/cpacia/multisig/version"
	"testing"
)

func TestMultisigNode_Status(t *testing.T) {
	node, mockOracle, err := MockNode()
	if err != nil {
		t.Fatal(err)
	}
	defer node.DestroyNode()

	status, err := node.Status(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if status.KeysPresent || status.CommitmentPresent {
		t.Error("Expected empty wallet")
	}
	if status.Blocks != 100 {
		t.Errorf("Expected blocks %d, got %d", 100, status.Blocks)
	}

	c, err := node.InitWallet("", false)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 4; i++ {
		mockOracle.AddUTXO(txbuilder.UTXOReference{
			TxID:          chainhash.DoubleHashH([]byte{byte(i)}),
			Amount:        1000,
			LockingScript: c.OutputScript,
			Confirmations: int64(i),
		})
	}
	dest, err := mockOracle.GetNewAddress(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := node.BeginSpend(context.Background(), chainhash.DoubleHashH([]byte{3}), 0, dest, 500); err != nil {
		t.Fatal(err)
	}

	status, err = node.Status(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !status.KeysPresent || status.KeysSealed || !status.CommitmentPresent {
		t.Error("Expected unsealed wallet with commitment")
	}
	if status.Address != c.Address {
		t.Errorf("Expected address %s, got %s", c.Address, status.Address)
	}
	if status.Threshold != 2 || status.Total != 3 {
		t.Errorf("Expected 2-of-3, got %d-of-%d", status.Threshold, status.Total)
	}
	if status.Balance != 4000 {
		t.Errorf("Expected balance %d, got %d", 4000, status.Balance)
	}
	if len(status.RecentUTXOs) != 3 {
		t.Fatalf("Expected %d utxos, got %d", 3, len(status.RecentUTXOs))
	}
	if status.RecentUTXOs[0].Confirmations != 0 {
		t.Errorf("Expected newest utxo first, got %d confirmations", status.RecentUTXOs[0].Confirmations)
	}
	if status.OpenSpends != 1 {
		t.Errorf("Expected %d open spends, got %d", 1, status.OpenSpends)
	}
}

func TestMultisigNode_StatusBroadcasts(t *testing.T) {
	node, _, fundingTxid, dest := fundedNode(t)
	defer node.DestroyNode()

	session, err := node.BeginSpend(context.Background(), fundingTxid, 0, dest, 90000)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := node.SignSpend(session.ID, 0); err != nil {
		t.Fatal(err)
	}
	if _, err := node.SignSpend(session.ID, 1); err != nil {
		t.Fatal(err)
	}
	if _, err := node.BroadcastSpend(context.Background(), session.ID); err != nil {
		t.Fatal(err)
	}

	status, err := node.Status(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if status.Version != version.UserAgent() {
		t.Errorf("Expected version %s, got %s", version.UserAgent(), status.Version)
	}
	if status.NodeError != "" {
		t.Fatalf("Unexpected node error %s", status.NodeError)
	}
	if len(status.RecentBroadcasts) != 1 {
		t.Fatalf("Expected %d broadcasts, got %d", 1, len(status.RecentBroadcasts))
	}
	b := status.RecentBroadcasts[0]
	if b.SpendID != session.ID {
		t.Errorf("Expected spend %s, got %s", session.ID, b.SpendID)
	}
	if b.Height != 100 {
		t.Errorf("Expected height %d, got %d", 100, b.Height)
	}
}
