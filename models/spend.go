package models

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"strconv"
	"time"
)

// ErrSpendNotFound signifies the spend session does not exist.
var ErrSpendNotFound = errors.New("spend session not found")

// SpendID is the identifier of a spend session. It is the txid of the
// unsigned transaction.
type SpendID string

// String returns the string representation of the ID.
func (id SpendID) String() string {
	return string(id)
}

// SpendSession holds the signing state of one spend from the multisig
// address. Signatures collected across separate invocations are kept here
// until the spend is finalized.
type SpendSession struct {
	ID SpendID `gorm:"primary_key" json:"id"`

	CommitmentAddress string `gorm:"index" json:"address"`

	UTXOTxID          string `json:"utxoTxid"`
	UTXOIndex         uint32 `json:"utxoIndex"`
	UTXOAmount        int64  `json:"utxoAmount"`
	UTXOScript        string `json:"utxoScript"`
	UTXOConfirmations int64  `json:"utxoConfirmations"`

	Destination string `json:"destination"`
	SendAmount  int64  `json:"amount"`
	Fee         int64  `json:"fee"`

	UnsignedTx string `json:"unsignedTx"`

	State string `gorm:"index" json:"state"`

	// Signatures maps the signer index to the hex encoded signature.
	Signatures json.RawMessage `json:"signatures,omitempty"`

	FailureReason string `json:"failureReason,omitempty"`

	SignedTx  string `json:"signedTx,omitempty"`
	FinalTxID string `json:"txid,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// GetSignatures decodes the stored signatures keyed by signer index.
func (s *SpendSession) GetSignatures() (map[int][]byte, error) {
	sigs := make(map[int][]byte)
	if len(s.Signatures) == 0 {
		return sigs, nil
	}
	var encoded map[string]string
	if err := json.Unmarshal(s.Signatures, &encoded); err != nil {
		return nil, err
	}
	for k, v := range encoded {
		idx, err := strconv.Atoi(k)
		if err != nil {
			return nil, err
		}
		sig, err := hex.DecodeString(v)
		if err != nil {
			return nil, err
		}
		sigs[idx] = sig
	}
	return sigs, nil
}

// PutSignatures replaces the stored signatures.
func (s *SpendSession) PutSignatures(sigs map[int][]byte) error {
	encoded := make(map[string]string, len(sigs))
	for idx, sig := range sigs {
		encoded[strconv.Itoa(idx)] = hex.EncodeToString(sig)
	}
	ser, err := json.Marshal(encoded)
	if err != nil {
		return err
	}
	s.Signatures = ser
	return nil
}

// UnsignedTxBytes returns the decoded unsigned transaction.
func (s *SpendSession) UnsignedTxBytes() ([]byte, error) {
	return hex.DecodeString(s.UnsignedTx)
}

// Broadcast records a transaction handed to the bitcoin node.
type Broadcast struct {
	TxID      string    `gorm:"primary_key" json:"txid"`
	SpendID   SpendID   `gorm:"index" json:"spendID"`
	Raw       string    `json:"raw"`
	Timestamp time.Time `json:"timestamp"`

	// Height is the chain tip when the transaction was sent.
	Height int64 `json:"height"`

	// Confirmations is filled in from the node when reporting status.
	Confirmations int64 `gorm:"-" json:"confirmations"`
}
