package cmd

import (
	"context"
	"fmt"
	"github.com/cpacia/multisig/core"
	"github.com/cpacia/multisig/repo"
	"github.com/cpacia/multisig/version"
	"github.com/fatih/color"
)

// Start runs the cosigner API and websocket event stream. The options to
// this command are the same as the wallet config options.
type Start struct {
	repo.Config
}

// Execute starts the node and blocks until it is interrupted.
func (x *Start) Execute(args []string) error {
	cfg, err := repo.LoadConfig()
	if err != nil {
		return err
	}

	n, err := core.NewNode(context.Background(), cfg)
	if err != nil {
		return err
	}
	printSplashScreen()

	commitment, err := n.GetCommitment()
	if err != nil {
		log.Warningf("No commitment loaded: %s", err)
	} else {
		log.Infof("Multisig address: %s", commitment.Address)
	}
	log.Infof("Network: %s", n.Params().Name)
	if n.UsingTestnet() {
		log.Notice("Using a test network. Coins have no value.")
	}
	return n.Start()
}

func printSplashScreen() {
	blue := color.New(color.FgBlue)
	white := color.New(color.FgWhite)

	for i, l := range []string{
		"                  _ _   _     _",
		"  _ __ ___  _   _| | |_(_)___(_) __ _",
		" | '_ ` _ \\| | | | | __| / __| |/ _` |",
		" | | | | | | |_| | | |_| \\__ \\ | (_| |",
		" |_| |_| |_|\\__,_|_|\\__|_|___/_|\\__, |",
		"                                |___/",
	} {
		c := white
		if i%2 == 1 {
			c = blue
		}
		if _, err := c.Println(l); err != nil {
			log.Debug(err)
			return
		}
	}

	blue.DisableColor()
	white.DisableColor()
	fmt.Printf("\nmultisig v%s\n", version.String())
}
