package core

import (
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/cpacia/multisig/api"
	"github.com/cpacia/multisig/events"
	"github.com/cpacia/multisig/notifications"
	"github.com/cpacia/multisig/oracle"
	"github.com/cpacia/multisig/repo"
	"os"
	"os/signal"
	"sync"
)

// MultisigNode holds all the components that make up a multisig wallet
// and exposes the operations used by the command line and the cosigner
// API.
type MultisigNode struct {

	// repo holds the database and the wallet files.
	repo *repo.Repo

	// oracle is the connection to the bitcoin node.
	oracle oracle.Oracle

	// eventBus emits spend lifecycle events to subscribers.
	eventBus events.Bus

	// params is the bitcoin network in use.
	params *chaincfg.Params

	// threshold is the number of signatures a new commitment requires.
	threshold int

	// minFeeRate is the minimum fee rate in sat/vbyte a spend must pay.
	minFeeRate int64

	// minConf is the number of confirmations a UTXO needs before it
	// may be spent.
	minConf int64

	// passphrase opens a sealed key file. It may be empty.
	passphrase string

	// gatewayConfig is used to build the API gateway when the node is
	// started as a server.
	gatewayConfig *api.GatewayConfig

	gateway  *api.Gateway
	notifier *notifications.Notifier

	// shutdown is closed when the node is stopped. Any listening
	// goroutines can use this to terminate.
	shutdown chan struct{}
	stopOnce sync.Once
}

// Start serves the cosigner API and forwards spend events to websocket
// clients. It blocks until the gateway stops and listens for a signal
// interrupt.
func (n *MultisigNode) Start() error {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	go func() {
		select {
		case <-c:
			log.Info("Multisig node shutting down...")
			n.Stop()
			os.Exit(1)
		case <-n.shutdown:
		}
	}()

	if n.gatewayConfig == nil {
		return ErrNoGateway
	}
	gateway, err := newHTTPGateway(n, n.gatewayConfig)
	if err != nil {
		return err
	}
	n.gateway = gateway

	n.notifier = notifications.NewNotifier(n.eventBus, n.gateway.NotifyWebsockets)
	go n.notifier.Start()

	return n.gateway.Serve()
}

// Stop cleanly shuts down the MultisigNode and signals to any
// listening goroutines that it's time to stop.
func (n *MultisigNode) Stop() {
	n.stopOnce.Do(func() {
		close(n.shutdown)
		if n.notifier != nil {
			n.notifier.Stop()
		}
		if n.gateway != nil {
			n.gateway.Close()
		}
		n.repo.Close()
	})
}

// DestroyNode shuts down the node and deletes the entire data directory.
// This should only be used during testing as destroying a live node will
// result in data loss.
func (n *MultisigNode) DestroyNode() {
	n.Stop()
	n.repo.DestroyRepo()
}

// Params returns the bitcoin network parameters the node uses.
func (n *MultisigNode) Params() *chaincfg.Params {
	return n.params
}

// UsingTestnet returns whether the node is configured for a test network.
func (n *MultisigNode) UsingTestnet() bool {
	return n.params.Net != chaincfg.MainNetParams.Net
}

// SubscribeEvent subscribes to the provided event type.
func (n *MultisigNode) SubscribeEvent(event interface{}, opts ...events.SubscriptionOpt) (events.Subscription, error) {
	return n.eventBus.Subscribe(event, opts...)
}
