package api

import (
	"encoding/json"
	"fmt"
	"github.com/cpacia/multisig/core/coreiface"
	"github.com/gorilla/mux"
	"github.com/op/go-logging"
	"github.com/pkg/errors"
	"net"
	"net/http"
	"strings"
)

var log = logging.MustGetLogger("API")

// GatewayConfig configures the cosigner API.
type GatewayConfig struct {
	Listener   net.Listener
	Addr       string
	AllowedIPs map[string]bool
	Username   string

	// Password is the hex encoded sha256 hash of the API password.
	Password string
}

// Gateway represents an HTTP API gateway
type Gateway struct {
	listener net.Listener
	node     coreiface.CoreIface
	handler  http.Handler
	config   *GatewayConfig
	hub      *hub
}

// NewGateway instantiates a new gateway serving the v1 API and the
// websocket event stream.
func NewGateway(node coreiface.CoreIface, config *GatewayConfig) (*Gateway, error) {
	if config.Listener == nil {
		return nil, fmt.Errorf("gateway listener is nil")
	}
	g := &Gateway{
		node:     node,
		config:   config,
		listener: config.Listener,
		hub:      newHub(),
	}

	r := g.newV1Router()
	r.Use(mux.CORSMethodMiddleware(r))
	r.Use(g.AuthenticationMiddleware)

	go g.hub.run()

	g.handler = r
	return g, nil
}

// Close shutsdown the Gateway listener.
func (g *Gateway) Close() error {
	g.hub.close()
	return g.listener.Close()
}

// Serve begins listening on the configured address.
func (g *Gateway) Serve() error {
	log.Infof("Gateway/API server listening on %s", g.listener.Addr())
	return http.Serve(g.listener, g.handler)
}

// NotifyWebsockets marshals i and sends it to every connected websocket.
func (g *Gateway) NotifyWebsockets(i interface{}) error {
	out, err := marshalAndSanitizeJSON(i)
	if err != nil {
		return err
	}
	g.hub.broadcast(out)
	return nil
}

func (g *Gateway) newV1Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/v1/wallet/address", g.handleGETAddress).Methods("GET")
	r.HandleFunc("/v1/wallet/publickeys", g.handleGETPublicKeys).Methods("GET")
	r.HandleFunc("/v1/wallet/status", g.handleGETStatus).Methods("GET")

	r.HandleFunc("/v1/spends", g.handleGETSpends).Methods("GET")
	r.HandleFunc("/v1/spends", g.handlePOSTSpend).Methods("POST")
	r.HandleFunc("/v1/spends/{spendID}", g.handleGETSpend).Methods("GET")
	r.HandleFunc("/v1/spends/{spendID}/history", g.handleGETSpendHistory).Methods("GET")
	r.HandleFunc("/v1/spends/{spendID}/sign", g.handlePOSTSign).Methods("POST")
	r.HandleFunc("/v1/spends/{spendID}/signatures", g.handlePOSTSignature).Methods("POST")
	r.HandleFunc("/v1/spends/{spendID}/finalize", g.handlePOSTFinalize).Methods("POST")
	r.HandleFunc("/v1/spends/{spendID}/broadcast", g.handlePOSTBroadcast).Methods("POST")
	r.HandleFunc("/v1/spends/{spendID}/cancel", g.handlePOSTCancel).Methods("POST")
	r.HandleFunc("/v1/spends/{spendID}/psbt", g.handleGETPSBT).Methods("GET")
	r.HandleFunc("/v1/spends/{spendID}/psbt", g.handlePOSTPSBT).Methods("POST")

	r.Handle("/v1/ws", newWebsocketHandler(g.hub))
	return r
}

func wrapError(err error) string {
	return fmt.Sprintf(`{"error": "%s"}`, strings.Replace(err.Error(), `"`, `'`, -1))
}

// errorStatus maps the coreiface error categories to HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, coreiface.ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, coreiface.ErrNotFound), errors.Is(err, coreiface.ErrNoWallet):
		return http.StatusNotFound
	case errors.Is(err, coreiface.ErrConflict), errors.Is(err, coreiface.ErrWalletExists):
		return http.StatusConflict
	case errors.Is(err, coreiface.ErrLocked):
		return http.StatusLocked
	case errors.Is(err, coreiface.ErrBadGateway):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func httpError(w http.ResponseWriter, err error) {
	http.Error(w, wrapError(err), errorStatus(err))
}

func decodeBody(r *http.Request, i interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(i); err != nil {
		return coreiface.Wrap(coreiface.ErrBadRequest, err)
	}
	return nil
}
