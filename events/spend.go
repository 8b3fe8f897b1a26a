package events

import (
	"github.com/cpacia/multisig/models"
)

// SpendStarted is emitted when a new spend session is created from a UTXO.
type SpendStarted struct {
	SpendID     models.SpendID `json:"spendID"`
	Address     string         `json:"address"`
	Destination string         `json:"destination"`
	Amount      int64          `json:"amount"`
	Fee         int64          `json:"fee"`
}

// SignatureAdded is emitted each time a cosigner's signature is accepted.
type SignatureAdded struct {
	SpendID     models.SpendID `json:"spendID"`
	SignerIndex int            `json:"signerIndex"`
	Count       int            `json:"count"`
	Threshold   int            `json:"threshold"`

	// Complete is set once enough signatures are held to finalize.
	Complete bool `json:"complete"`
}

// SpendFinalized is emitted once the witness is assembled.
type SpendFinalized struct {
	SpendID models.SpendID `json:"spendID"`
	TxID    string         `json:"txid"`
}

// SpendBroadcast is emitted when the node accepts the transaction.
type SpendBroadcast struct {
	SpendID models.SpendID `json:"spendID"`
	TxID    string         `json:"txid"`
}

// SpendFailed is emitted when a session can no longer complete.
type SpendFailed struct {
	SpendID models.SpendID `json:"spendID"`
	Reason  string         `json:"reason"`
}
