package cmd

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/cpacia/multisig/keys"
	"github.com/cpacia/multisig/multisig"
	"github.com/cpacia/multisig/repo"
	"github.com/fatih/color"
	"io/ioutil"
)

// Init generates a new key ring and commitment or restores them from
// WIF keys or mnemonic backups. A passphrase set in the config seals the
// key file.
type Init struct {
	repo.Config
	Force     bool     `short:"f" long:"force" description:"Overwrite an existing wallet (dangerous!)"`
	WIFs      []string `short:"w" long:"wif" description:"Restore from a WIF private key. Repeat once per key."`
	Mnemonics []string `short:"m" long:"mnemonic" description:"Restore from a mnemonic key backup. Repeat once per key."`
}

// Execute initializes the wallet.
func (x *Init) Execute(args []string) error {
	if len(x.WIFs) > 0 && len(x.Mnemonics) > 0 {
		return errors.New("use either --wif or --mnemonic, not both")
	}
	n, err := loadNode()
	if err != nil {
		return err
	}
	defer n.Stop()

	var c *multisig.Commitment
	switch {
	case len(x.WIFs) > 0:
		c, err = n.ImportWIFs(x.WIFs, x.Passphrase, x.Force)
	case len(x.Mnemonics) > 0:
		c, err = n.ImportMnemonics(x.Mnemonics, x.Passphrase, x.Force)
	default:
		c, err = n.InitWallet(x.Passphrase, x.Force)
	}
	if err != nil {
		return err
	}

	printField("Address", c.Address)
	printField("Witness script", hex.EncodeToString(c.WitnessScript))
	if len(x.WIFs) == 0 && len(x.Mnemonics) == 0 {
		fmt.Println("")
		color.New(color.FgYellow).Println("Run the backup command and store each key's mnemonic with its holder.")
	}
	return nil
}

// Address prints the multisig address and the public keys it commits to.
type Address struct {
	repo.Config
	JSON bool `long:"json" description:"Print the commitment as JSON"`
}

// Execute prints the address.
func (x *Address) Execute(args []string) error {
	n, err := loadNode()
	if err != nil {
		return err
	}
	defer n.Stop()

	c, err := n.GetCommitment()
	if err != nil {
		return err
	}
	if x.JSON {
		return printJSON(c)
	}
	pubKeys, err := n.GetPublicKeys()
	if err != nil {
		return err
	}
	printField("Address", c.Address)
	printField("Witness script", hex.EncodeToString(c.WitnessScript))
	for i, k := range pubKeys {
		printField(fmt.Sprintf("Signer %d", i), hex.EncodeToString(k))
	}
	return nil
}

// Backup prints one mnemonic per signer key.
type Backup struct {
	repo.Config
}

// Execute prints the mnemonics.
func (x *Backup) Execute(args []string) error {
	n, err := loadNode()
	if err != nil {
		return err
	}
	defer n.Stop()

	phrases, err := n.BackupMnemonics()
	if err != nil {
		return err
	}
	for i, phrase := range phrases {
		printField(fmt.Sprintf("Signer %d", i), phrase)
	}
	return nil
}

// Export prints the unsealed key file or the PSBT of a spend.
type Export struct {
	repo.Config
	Spend string `long:"spend" description:"Export the PSBT of this spend instead of the keys"`
}

// Execute runs the export.
func (x *Export) Execute(args []string) error {
	n, err := loadNode()
	if err != nil {
		return err
	}
	defer n.Stop()

	if x.Spend != "" {
		b64, err := n.ExportSpendPSBT(spendIDArg(x.Spend))
		if err != nil {
			return err
		}
		fmt.Println(b64)
		return nil
	}

	kf, err := n.ExportKeys()
	if err != nil {
		return err
	}
	out, err := keys.MarshalKeyFile(kf)
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

// Import loads a watch-only commitment or merges a PSBT into a spend.
type Import struct {
	repo.Config
	Force      bool   `short:"f" long:"force" description:"Replace an existing commitment"`
	Commitment string `long:"commitment" description:"Path to a commitment JSON file"`
	Spend      string `long:"spend" description:"Spend to merge the PSBT into"`
	PSBT       string `long:"psbt" description:"Base64 PSBT carrying cosigner signatures"`
}

// Execute runs the import.
func (x *Import) Execute(args []string) error {
	if (x.Commitment == "") == (x.PSBT == "") {
		return errors.New("specify exactly one of --commitment or --psbt")
	}
	n, err := loadNode()
	if err != nil {
		return err
	}
	defer n.Stop()

	if x.Commitment != "" {
		raw, err := ioutil.ReadFile(x.Commitment)
		if err != nil {
			return err
		}
		var c multisig.Commitment
		if err := json.Unmarshal(raw, &c); err != nil {
			return err
		}
		if err := n.ImportCommitment(&c, x.Force); err != nil {
			return err
		}
		printField("Address", c.Address)
		return nil
	}

	if x.Spend == "" {
		return errors.New("--psbt requires --spend")
	}
	session, err := n.ImportSpendPSBT(spendIDArg(x.Spend), x.PSBT)
	if err != nil {
		return err
	}
	printSession(session)
	return nil
}

// Passphrase reseals the key file under a new passphrase. The current
// passphrase comes from the config or MULTISIG_PASSPHRASE.
type Passphrase struct {
	repo.Config
	New string `long:"new" description:"The new passphrase. Empty stores the key file unsealed."`
}

// Execute changes the passphrase.
func (x *Passphrase) Execute(args []string) error {
	n, err := loadNode()
	if err != nil {
		return err
	}
	defer n.Stop()

	if err := n.ChangePassphrase(x.New); err != nil {
		return err
	}
	if x.New == "" {
		color.New(color.FgYellow).Println("Key file is now stored unsealed.")
		return nil
	}
	fmt.Println("Passphrase changed.")
	return nil
}
