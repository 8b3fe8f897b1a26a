package core

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"github.com/cpacia/multisig/api"
	"github.com/cpacia/multisig/events"
	"github.com/cpacia/multisig/oracle"
	"github.com/cpacia/multisig/repo"
	"github.com/cpacia/proxyclient"
	"github.com/op/go-logging"
	"github.com/pkg/errors"
	"golang.org/x/net/proxy"
	"net"
)

var log = logging.MustGetLogger("CORE")

// ErrNoGateway is returned by Start when the node was built without an
// API configuration.
var ErrNoGateway = errors.New("node has no api gateway configured")

// NewNode constructs and returns a MultisigNode using the given cfg.
func NewNode(ctx context.Context, cfg *repo.Config) (*MultisigNode, error) {
	params, err := cfg.Params()
	if err != nil {
		return nil, err
	}

	msRepo, err := repo.NewRepo(cfg.DataDir)
	if err != nil {
		return nil, err
	}

	if cfg.Proxy != "" {
		dialer, err := proxy.SOCKS5("tcp", cfg.Proxy, nil, proxy.Direct)
		if err != nil {
			msRepo.Close()
			return nil, err
		}
		// The oracle's http client is built by proxyclient so the dialer
		// must be set before it is constructed.
		proxyclient.SetProxy(dialer)
		log.Infof("Connecting to bitcoind through proxy %s", cfg.Proxy)
	}

	client := oracle.NewBitcoindClient(oracle.ClientConfig{
		Host:    cfg.RPCHostOrDefault(),
		User:    cfg.RPCUser,
		Pass:    cfg.RPCPass,
		Timeout: cfg.RPCTimeout,
		Params:  params,
	})

	allowedIPs := make(map[string]bool)
	for _, ip := range cfg.AllowedIPs {
		allowedIPs[ip] = true
	}
	gatewayConfig := &api.GatewayConfig{
		Addr:       cfg.APIAddr,
		Username:   cfg.APIUser,
		AllowedIPs: allowedIPs,
	}
	if cfg.APIPass != "" {
		h := sha256.Sum256([]byte(cfg.APIPass))
		gatewayConfig.Password = hex.EncodeToString(h[:])
	}

	node := &MultisigNode{
		repo:          msRepo,
		oracle:        client,
		eventBus:      events.NewBus(),
		params:        params,
		threshold:     cfg.Threshold,
		minFeeRate:    cfg.MinFeeRate,
		minConf:       cfg.MinConf,
		passphrase:    cfg.Passphrase,
		gatewayConfig: gatewayConfig,
		shutdown:      make(chan struct{}),
	}

	log.Debugf("Loaded data directory %s on %s", cfg.DataDir, params.Name)
	return node, nil
}

func newHTTPGateway(n *MultisigNode, config *api.GatewayConfig) (*api.Gateway, error) {
	listener := config.Listener
	if listener == nil {
		l, err := net.Listen("tcp", config.Addr)
		if err != nil {
			return nil, errors.Wrapf(err, "newHTTPGateway: listen on %s", config.Addr)
		}
		listener = l
	}
	gwConfig := *config
	gwConfig.Listener = listener
	return api.NewGateway(n, &gwConfig)
}
