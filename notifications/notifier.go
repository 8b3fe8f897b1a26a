package notifications

import (
	"github.com/cpacia/multisig/events"
	"github.com/op/go-logging"
)

var log = logging.MustGetLogger("NOTIF")

// subscriptionBuffer holds events while a slow websocket write is pending.
const subscriptionBuffer = 64

// notifierStarted is emitted once the notifier has subscribed to the bus.
type notifierStarted struct{}

type spendStartedWrapper struct {
	SpendStarted interface{} `json:"spendStarted"`
}

type signatureAddedWrapper struct {
	SignatureAdded interface{} `json:"signatureAdded"`
}

type spendFinalizedWrapper struct {
	SpendFinalized interface{} `json:"spendFinalized"`
}

type spendBroadcastWrapper struct {
	SpendBroadcast interface{} `json:"spendBroadcast"`
}

type spendFailedWrapper struct {
	SpendFailed interface{} `json:"spendFailed"`
}

// Notifier manages translating spend events into notifications and
// sending them to websockets.
type Notifier struct {
	notifyFunc func(interface{}) error
	bus        events.Bus
	shutdown   chan struct{}
}

// NewNotifier returns a new notifer.
func NewNotifier(bus events.Bus, notifyFunc func(interface{}) error) *Notifier {
	return &Notifier{
		bus:        bus,
		notifyFunc: notifyFunc,
		shutdown:   make(chan struct{}),
	}
}

// Start will start up the notifier. This should use it's own goroutine.
func (n *Notifier) Start() {
	spendEvents := []interface{}{
		&events.SpendStarted{},
		&events.SignatureAdded{},
		&events.SpendFinalized{},
		&events.SpendBroadcast{},
		&events.SpendFailed{},
	}

	sub, err := n.bus.Subscribe(spendEvents, events.BufSize(subscriptionBuffer))
	if err != nil {
		log.Errorf("Error subscribing to events: %s", err)
		return
	}
	defer sub.Close()

	n.bus.Emit(&notifierStarted{})

	for {
		select {
		case event := <-sub.Out():
			i := wrapEvent(event)
			if i == nil {
				continue
			}
			if err := n.notifyFunc(i); err != nil {
				log.Errorf("Error sending notification: %s", err)
			}
		case <-n.shutdown:
			return
		}
	}
}

// Stop shuts down the notifier.
func (n *Notifier) Stop() {
	close(n.shutdown)
}

func wrapEvent(event interface{}) interface{} {
	switch event.(type) {
	case *events.SpendStarted:
		return spendStartedWrapper{event}
	case *events.SignatureAdded:
		return signatureAddedWrapper{event}
	case *events.SpendFinalized:
		return spendFinalizedWrapper{event}
	case *events.SpendBroadcast:
		return spendBroadcastWrapper{event}
	case *events.SpendFailed:
		return spendFailedWrapper{event}
	}
	return nil
}
