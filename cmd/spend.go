package cmd

import (
	"context"
	"fmt"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/cpacia/multisig/models"
	"github.com/cpacia/multisig/repo"
	"github.com/cpacia/multisig/txbuilder"
	"strings"
)

func spendIDArg(s string) models.SpendID {
	return models.SpendID(strings.TrimSpace(s))
}

// Spend starts a spend of one UTXO held by the multisig address. Local
// keys listed with --sign are applied right away and, once enough
// signatures exist, the transaction is finalized.
type Spend struct {
	repo.Config
	Sign      []int `short:"s" long:"sign" description:"Sign with the local key at this index. Repeat for each signer."`
	Broadcast bool  `long:"broadcast" description:"Broadcast the transaction once it is finalized"`
	Args      struct {
		TxID        string `positional-arg-name:"txid" description:"Transaction holding the UTXO"`
		Vout        uint32 `positional-arg-name:"vout" description:"Output index of the UTXO"`
		Destination string `positional-arg-name:"destination" description:"Address to pay"`
		Amount      int64  `positional-arg-name:"amount" description:"Satoshis to send. The rest of the UTXO is the fee."`
	} `positional-args:"yes" required:"yes"`
}

// Execute begins the spend.
func (x *Spend) Execute(args []string) error {
	txid, err := chainhash.NewHashFromStr(x.Args.TxID)
	if err != nil {
		return err
	}
	n, err := loadNode()
	if err != nil {
		return err
	}
	defer n.Stop()

	ctx := context.Background()
	session, err := n.BeginSpend(ctx, *txid, x.Args.Vout, x.Args.Destination, x.Args.Amount)
	if err != nil {
		return err
	}
	for _, idx := range x.Sign {
		session, err = n.SignSpend(session.ID, idx)
		if err != nil {
			return err
		}
	}
	if session.State == txbuilder.StateFullySigned.String() {
		session, err = n.FinalizeSpend(session.ID)
		if err != nil {
			return err
		}
		if x.Broadcast {
			session, err = n.BroadcastSpend(ctx, session.ID)
			if err != nil {
				return err
			}
			printSession(session)
			fmt.Printf("\nBroadcast %s\n", session.FinalTxID)
			return nil
		}
	}
	printSession(session)
	printBroadcastHint(session)
	return nil
}

// Sign adds signatures from local keys to a spend.
type Sign struct {
	repo.Config
	Args struct {
		SpendID string `positional-arg-name:"spend" description:"The spend to sign"`
		Signers []int  `positional-arg-name:"index" description:"Indices of the local keys to sign with" required:"1"`
	} `positional-args:"yes" required:"yes"`
}

// Execute signs the spend.
func (x *Sign) Execute(args []string) error {
	n, err := loadNode()
	if err != nil {
		return err
	}
	defer n.Stop()

	var session *models.SpendSession
	for _, idx := range x.Args.Signers {
		session, err = n.SignSpend(spendIDArg(x.Args.SpendID), idx)
		if err != nil {
			return err
		}
	}
	printSession(session)
	return nil
}

// AddSig adds a signature produced by a remote cosigner.
type AddSig struct {
	repo.Config
	Args struct {
		SpendID   string `positional-arg-name:"spend" description:"The spend the signature is for"`
		Index     int    `positional-arg-name:"index" description:"Position of the signer's key in the witness script"`
		Signature string `positional-arg-name:"signature" description:"DER signature with sighash byte, hex encoded"`
	} `positional-args:"yes" required:"yes"`
}

// Execute adds the signature.
func (x *AddSig) Execute(args []string) error {
	n, err := loadNode()
	if err != nil {
		return err
	}
	defer n.Stop()

	session, err := n.AddSignature(spendIDArg(x.Args.SpendID), x.Args.Index, x.Args.Signature)
	if err != nil {
		return err
	}
	printSession(session)
	return nil
}

type spendArg struct {
	SpendID string `positional-arg-name:"spend" description:"The spend ID"`
}

// Finalize assembles the witness of a fully signed spend.
type Finalize struct {
	repo.Config
	Args spendArg `positional-args:"yes" required:"yes"`
}

// Execute finalizes the spend.
func (x *Finalize) Execute(args []string) error {
	n, err := loadNode()
	if err != nil {
		return err
	}
	defer n.Stop()

	session, err := n.FinalizeSpend(spendIDArg(x.Args.SpendID))
	if err != nil {
		return err
	}
	printSession(session)
	printBroadcastHint(session)
	return nil
}

// Broadcast finalizes a spend if needed and sends it to the bitcoin node.
type Broadcast struct {
	repo.Config
	Args spendArg `positional-args:"yes" required:"yes"`
}

// Execute broadcasts the spend.
func (x *Broadcast) Execute(args []string) error {
	n, err := loadNode()
	if err != nil {
		return err
	}
	defer n.Stop()

	session, err := n.BroadcastSpend(context.Background(), spendIDArg(x.Args.SpendID))
	if err != nil {
		return err
	}
	printSession(session)
	return nil
}

// Cancel abandons a spend. Its signatures are kept but it can no longer be
// finalized.
type Cancel struct {
	repo.Config
	Reason string   `long:"reason" description:"Recorded as the failure reason"`
	Args   spendArg `positional-args:"yes" required:"yes"`
}

// Execute cancels the spend.
func (x *Cancel) Execute(args []string) error {
	n, err := loadNode()
	if err != nil {
		return err
	}
	defer n.Stop()

	session, err := n.CancelSpend(spendIDArg(x.Args.SpendID), x.Reason)
	if err != nil {
		return err
	}
	printSession(session)
	return nil
}
