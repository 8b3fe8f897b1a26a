package cmd

import (
	"context"
	"fmt"
	"github.com/cpacia/multisig/repo"
	"github.com/fatih/color"
)

// Status reports the node connection, the wallet files and open spends.
type Status struct {
	repo.Config
}

// Execute prints the status.
func (x *Status) Execute(args []string) error {
	n, err := loadNode()
	if err != nil {
		return err
	}
	defer n.Stop()

	status, err := n.Status(context.Background())
	if err != nil {
		return err
	}

	printField("Version", status.Version)
	printField("Network", status.Network)
	if status.NodeError != "" {
		color.New(color.FgRed).Printf("Bitcoin node unreachable: %s\n", status.NodeError)
	} else {
		printField("Chain", status.Chain)
		printField("Blocks", fmt.Sprintf("%d/%d", status.Blocks, status.Headers))
		printField("Sync", fmt.Sprintf("%.2f%%", status.SyncProgress*100))
		printField("Pruned", status.Pruned)
		printField("Node balance", status.NodeBalance)
	}
	fmt.Println("")

	printField("Keys", presence(status.KeysPresent))
	if status.KeysPresent {
		printField("Sealed", status.KeysSealed)
	}
	printField("Commitment", presence(status.CommitmentPresent))
	if status.CommitmentPresent {
		printField("Address", status.Address)
		printField("Policy", fmt.Sprintf("%d-of-%d", status.Threshold, status.Total))
		printField("Balance", status.Balance)
		for _, utxo := range status.RecentUTXOs {
			printField("UTXO", fmt.Sprintf("%s:%d %d sats (%d conf)", utxo.TxID, utxo.Vout, utxo.Amount, utxo.Confirmations))
		}
	}
	printField("Open spends", status.OpenSpends)
	for _, b := range status.RecentBroadcasts {
		printField("Broadcast", fmt.Sprintf("%s at height %d (%d conf)", b.TxID, b.Height, b.Confirmations))
	}
	return nil
}

func presence(ok bool) string {
	if ok {
		return "present"
	}
	return "missing"
}

// List prints every spend session, newest first.
type List struct {
	repo.Config
}

// Execute lists the spends.
func (x *List) Execute(args []string) error {
	n, err := loadNode()
	if err != nil {
		return err
	}
	defer n.Stop()

	spends, err := n.ListSpends()
	if err != nil {
		return err
	}
	for _, s := range spends {
		fmt.Printf("%s  %-16s %d sats to %s\n", s.ID, s.State, s.SendAmount, s.Destination)
	}
	return nil
}

// History prints the recorded events of a spend.
type History struct {
	repo.Config
	Args spendArg `positional-args:"yes" required:"yes"`
}

// Execute prints the history.
func (x *History) Execute(args []string) error {
	n, err := loadNode()
	if err != nil {
		return err
	}
	defer n.Stop()

	id := spendIDArg(x.Args.SpendID)
	session, err := n.GetSpend(id)
	if err != nil {
		return err
	}
	history, err := n.GetSpendHistory(id)
	if err != nil {
		return err
	}
	printSession(session)
	fmt.Println("")
	for _, e := range history {
		line := fmt.Sprintf("%s  %s", e.Time.Format("2006-01-02 15:04:05"), e.Name)
		if e.Detail != "" {
			line += "  " + e.Detail
		}
		fmt.Println(line)
	}
	return nil
}
