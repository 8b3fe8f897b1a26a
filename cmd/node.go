package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"github.com/cpacia/multisig/core"
	"github.com/cpacia/multisig/models"
	"github.com/cpacia/multisig/repo"
	"github.com/cpacia/multisig/txbuilder"
	"github.com/fatih/color"
	"github.com/op/go-logging"
)

var log = logging.MustGetLogger("CMD")

// loadNode parses the config and builds a node without starting the API.
func loadNode() (*core.MultisigNode, error) {
	cfg, err := repo.LoadConfig()
	if err != nil {
		return nil, err
	}
	return core.NewNode(context.Background(), cfg)
}

func printJSON(i interface{}) error {
	out, err := json.MarshalIndent(i, "", "    ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func printField(name string, value interface{}) {
	color.New(color.FgCyan).Printf("%-16s", name+":")
	fmt.Println(value)
}

func printSession(session *models.SpendSession) {
	sigs, err := session.GetSignatures()
	if err != nil {
		log.Errorf("Error decoding signatures for spend %s: %s", session.ID, err)
	}
	printField("Spend", session.ID)
	printField("State", session.State)
	printField("Input", fmt.Sprintf("%s:%d", session.UTXOTxID, session.UTXOIndex))
	printField("Destination", session.Destination)
	printField("Amount", session.SendAmount)
	printField("Fee", session.Fee)
	printField("Signatures", len(sigs))
	if session.FailureReason != "" {
		printField("Reason", session.FailureReason)
	}
	if session.SignedTx != "" {
		printField("TXID", session.FinalTxID)
		printField("Hex", session.SignedTx)
	}
}

// printBroadcastHint shows how to hand a finalized spend to the node by hand.
func printBroadcastHint(session *models.SpendSession) {
	if session.State != txbuilder.StateFinalized.String() || session.SignedTx == "" {
		return
	}
	fmt.Println("")
	color.New(color.FgGreen).Println("Transaction is ready to broadcast:")
	fmt.Printf("bitcoin-cli sendrawtransaction %s\n", session.SignedTx)
}
