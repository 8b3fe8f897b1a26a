package api

import (
	"fmt"
	"github.com/cpacia/multisig/events"
	"github.com/gorilla/websocket"
	"net"
	"testing"
	"time"
)

func TestGateway_NotifyWebsockets(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	gateway, err := NewGateway(&mockNode{}, &GatewayConfig{Listener: listener})
	if err != nil {
		t.Fatal(err)
	}
	go gateway.Serve()
	defer gateway.Close()

	conn, _, err := websocket.DefaultDialer.Dial(fmt.Sprintf("ws://%s/v1/ws", listener.Addr().String()), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	notif := struct {
		SpendFinalized events.SpendFinalized `json:"spendFinalized"`
	}{
		SpendFinalized: events.SpendFinalized{SpendID: "abc", TxID: "def"},
	}
	expected, err := marshalAndSanitizeJSON(notif)
	if err != nil {
		t.Fatal(err)
	}

	// The connection registers with the hub asynchronously so keep
	// notifying until the first message arrives.
	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(time.Millisecond * 50)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				gateway.NotifyWebsockets(notif)
			case <-done:
				return
			}
		}
	}()

	conn.SetReadDeadline(time.Now().Add(time.Second * 10))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	if string(msg) != string(expected) {
		t.Errorf("Expected %s, got %s", string(expected), string(msg))
	}
}
