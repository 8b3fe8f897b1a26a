package core

import (
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/cpacia/multisig/events"
	"github.com/cpacia/multisig/oracle"
	"github.com/cpacia/multisig/repo"
	"github.com/cpacia/multisig/txbuilder"
)

// MockNode builds a regtest node with a temp data directory, in-memory
// database and an in-memory bitcoin node.
func MockNode() (*MultisigNode, *oracle.MockOracle, error) {
	r, err := repo.MockRepo()
	if err != nil {
		return nil, nil, err
	}

	params := &chaincfg.RegressionNetParams
	mockOracle := oracle.NewMockOracle(params)

	node := &MultisigNode{
		repo:       r,
		oracle:     mockOracle,
		eventBus:   events.NewBus(),
		params:     params,
		threshold:  2,
		minFeeRate: txbuilder.DefaultMinFeeRate,
		shutdown:   make(chan struct{}),
	}
	return node, mockOracle, nil
}
