package models

// UTXO is an unspent output paying to the multisig address.
type UTXO struct {
	TxID          string `json:"txid"`
	Vout          uint32 `json:"vout"`
	Amount        int64  `json:"amount"`
	Confirmations int64  `json:"confirmations"`
}

// WalletStatus summarizes the node connection and local wallet state.
type WalletStatus struct {
	Version string `json:"version"`
	Network string `json:"network"`

	// Node state. Left empty when the node is unreachable and NodeError
	// holds the reason.
	Chain        string  `json:"chain,omitempty"`
	Blocks       int64   `json:"blocks,omitempty"`
	Headers      int64   `json:"headers,omitempty"`
	SyncProgress float64 `json:"syncProgress,omitempty"`
	Pruned       bool    `json:"pruned"`
	NodeBalance  int64   `json:"nodeBalance"`
	NodeError    string  `json:"nodeError,omitempty"`

	KeysPresent       bool   `json:"keysPresent"`
	KeysSealed        bool   `json:"keysSealed"`
	CommitmentPresent bool   `json:"commitmentPresent"`
	Address           string `json:"address,omitempty"`
	Threshold         int    `json:"threshold,omitempty"`
	Total             int    `json:"total,omitempty"`

	// RecentUTXOs holds the last three outputs paying to Address.
	RecentUTXOs []UTXO `json:"recentUtxos"`
	Balance     int64  `json:"balance"`

	OpenSpends int `json:"openSpends"`

	// RecentBroadcasts holds the last transactions sent to the node with
	// their current confirmation count.
	RecentBroadcasts []Broadcast `json:"recentBroadcasts"`
}
