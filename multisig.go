package main

import (
	"github.com/cpacia/multisig/cmd"
	"github.com/jessevdk/go-flags"
	"log"
	"os"
)

func main() {
	parser := flags.NewParser(nil, flags.Default)

	commands := []struct {
		name, short, long string
		data              interface{}
	}{
		{"init", "create or restore the wallet keys",
			"The init command generates a new key ring and the multisig commitment it controls. " +
				"Keys may instead be restored with --wif or --mnemonic.", &cmd.Init{}},
		{"address", "show the multisig address",
			"The address command prints the P2WSH address, witness script and signer public keys.", &cmd.Address{}},
		{"spend", "spend a UTXO from the multisig address",
			"The spend command builds an unsigned transaction paying amount to destination from the given UTXO. " +
				"The difference between the UTXO value and the amount is the fee.", &cmd.Spend{}},
		{"sign", "sign a spend with local keys",
			"The sign command adds signatures from the local key ring to a spend.", &cmd.Sign{}},
		{"addsig", "add a cosigner's signature to a spend",
			"The addsig command verifies and stores a signature produced by a remote cosigner.", &cmd.AddSig{}},
		{"finalize", "finalize a fully signed spend",
			"The finalize command assembles the witness and prints the signed transaction.", &cmd.Finalize{}},
		{"broadcast", "broadcast a spend",
			"The broadcast command finalizes the spend if needed and sends it to the bitcoin node.", &cmd.Broadcast{}},
		{"cancel", "cancel a spend",
			"The cancel command abandons a spend. Its signatures are kept for inspection but it can no longer be finalized.", &cmd.Cancel{}},
		{"status", "show node and wallet status",
			"The status command reports the bitcoin node, the wallet files, the balance and open spends.", &cmd.Status{}},
		{"list", "list spends",
			"The list command prints every spend, newest first.", &cmd.List{}},
		{"history", "show the history of a spend",
			"The history command prints the events recorded for a spend.", &cmd.History{}},
		{"backup", "print mnemonic backups of the keys",
			"The backup command prints one mnemonic per signer key.", &cmd.Backup{}},
		{"export", "export the keys or a spend PSBT",
			"The export command prints the key file, or the PSBT of a spend when --spend is set.", &cmd.Export{}},
		{"import", "import a commitment or a PSBT",
			"The import command loads a watch-only commitment or merges cosigner signatures from a PSBT.", &cmd.Import{}},
		{"passphrase", "change the key file passphrase",
			"The passphrase command reseals the key file under a new passphrase.", &cmd.Passphrase{}},
		{"start", "start the cosigner API",
			"The start command serves the HTTP API and the websocket event stream.", &cmd.Start{}},
	}
	for _, c := range commands {
		if _, err := parser.AddCommand(c.name, c.short, c.long, c.data); err != nil {
			log.Fatal(err)
		}
	}

	if _, err := parser.Parse(); err != nil {
		os.Exit(1)
	}
}
