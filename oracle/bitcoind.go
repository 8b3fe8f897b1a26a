package oracle

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcutil"
	"github.com/cpacia/multisig/txbuilder"
	"github.com/cpacia/proxyclient"
	"github.com/op/go-logging"
	"github.com/pkg/errors"
	"net/http"
	"strings"
	"sync/atomic"
	"time"
)

var log = logging.MustGetLogger("ORACLE")

// ClientConfig holds the connection settings of a bitcoind node.
type ClientConfig struct {
	Host    string
	User    string
	Pass    string
	Timeout time.Duration
	Params  *chaincfg.Params
}

// BitcoindClient implements Oracle against the bitcoind JSON-RPC interface.
type BitcoindClient struct {
	url    string
	user   string
	pass   string
	params *chaincfg.Params
	client *http.Client
	nextID uint64
}

// NewBitcoindClient returns a client for the node at cfg.Host. If a proxy
// has been set on proxyclient the connection goes through it.
func NewBitcoindClient(cfg ClientConfig) *BitcoindClient {
	client := proxyclient.NewHttpClient()
	client.Timeout = cfg.Timeout
	if client.Timeout == 0 {
		client.Timeout = time.Second * 30
	}

	url := cfg.Host
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = "http://" + url
	}
	params := cfg.Params
	if params == nil {
		params = &chaincfg.TestNet3Params
	}

	return &BitcoindClient{
		url:    url,
		user:   cfg.User,
		pass:   cfg.Pass,
		params: params,
		client: client,
	}
}

// call sends one JSON-RPC request and decodes the result into result. RPC
// level errors are returned as *btcjson.RPCError.
func (c *BitcoindClient) call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	id := atomic.AddUint64(&c.nextID, 1)
	req, err := btcjson.NewRequest(id, method, params)
	if err != nil {
		return err
	}
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequest(http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq = httpReq.WithContext(ctx)
	httpReq.Header.Set("Content-Type", "application/json")
	if c.user != "" || c.pass != "" {
		httpReq.SetBasicAuth(c.user, c.pass)
	}

	log.Debugf("rpc %s %v", method, params)
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return errors.Wrapf(err, "%s", method)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("%s: rpc authentication failed: %s", method, resp.Status)
	}

	// bitcoind answers RPC errors with a 500 and a JSON body, so the body
	// is decoded regardless of status.
	var rpcResp btcjson.Response
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return errors.Wrapf(ErrDecoding, "%s: %s (http status %d)", method, err, resp.StatusCode)
	}
	if rpcResp.Error != nil {
		return rpcResp.Error
	}
	if result == nil {
		return nil
	}
	if err := json.Unmarshal(rpcResp.Result, result); err != nil {
		return errors.Wrapf(ErrDecoding, "%s: %s", method, err)
	}
	return nil
}

// GetUTXO looks the output up with gettxout, including the mempool.
func (c *BitcoindClient) GetUTXO(ctx context.Context, txid chainhash.Hash, index uint32) (txbuilder.UTXOReference, error) {
	var res *btcjson.GetTxOutResult
	err := c.call(ctx, "gettxout", []interface{}{txid.String(), index, true}, &res)
	if isRPCCode(err, btcjson.ErrRPCInvalidAddressOrKey) {
		return txbuilder.UTXOReference{}, errors.Wrapf(ErrNotFound, "utxo %s:%d", txid, index)
	}
	if err != nil {
		return txbuilder.UTXOReference{}, err
	}
	if res == nil {
		return txbuilder.UTXOReference{}, errors.Wrapf(ErrNotFound, "utxo %s:%d", txid, index)
	}

	amount, err := btcutil.NewAmount(res.Value)
	if err != nil {
		return txbuilder.UTXOReference{}, errors.Wrapf(ErrDecoding, "utxo %s:%d value: %s", txid, index, err)
	}
	script, err := hex.DecodeString(res.ScriptPubKey.Hex)
	if err != nil {
		return txbuilder.UTXOReference{}, errors.Wrapf(ErrDecoding, "utxo %s:%d scriptPubKey: %s", txid, index, err)
	}
	return txbuilder.UTXOReference{
		TxID:          txid,
		OutputIndex:   index,
		Amount:        int64(amount),
		LockingScript: script,
		Confirmations: res.Confirmations,
	}, nil
}

// Broadcast submits the transaction with sendrawtransaction.
func (c *BitcoindClient) Broadcast(ctx context.Context, raw []byte) (chainhash.Hash, error) {
	var txid string
	err := c.call(ctx, "sendrawtransaction", []interface{}{hex.EncodeToString(raw)}, &txid)
	if rpcErr, ok := err.(*btcjson.RPCError); ok {
		return chainhash.Hash{}, errors.Wrapf(ErrRejected, "%d: %s", rpcErr.Code, rpcErr.Message)
	}
	if err != nil {
		return chainhash.Hash{}, err
	}
	hash, err := chainhash.NewHashFromStr(txid)
	if err != nil {
		return chainhash.Hash{}, errors.Wrapf(ErrDecoding, "txid %q: %s", txid, err)
	}
	log.Infof("Broadcast transaction %s", hash)
	return *hash, nil
}

// GetBalance returns the wallet balance.
func (c *BitcoindClient) GetBalance(ctx context.Context) (btcutil.Amount, error) {
	var btc float64
	if err := c.call(ctx, "getbalance", nil, &btc); err != nil {
		return 0, err
	}
	amount, err := btcutil.NewAmount(btc)
	if err != nil {
		return 0, errors.Wrap(ErrDecoding, err.Error())
	}
	return amount, nil
}

// GetNewAddress returns a new bech32 wallet address. The address must
// belong to the configured network.
func (c *BitcoindClient) GetNewAddress(ctx context.Context, label string) (string, error) {
	var addr string
	if err := c.call(ctx, "getnewaddress", []interface{}{label, "bech32"}, &addr); err != nil {
		return "", err
	}
	decoded, err := btcutil.DecodeAddress(addr, c.params)
	if err != nil || !decoded.IsForNet(c.params) {
		return "", errors.Wrapf(ErrDecoding, "address %q is not a %s address", addr, c.params.Name)
	}
	return addr, nil
}

// blockchainInfo decodes the fields of getblockchaininfo in use. Newer nodes
// return softforks as an object, which btcjson's result type cannot decode.
type blockchainInfo struct {
	Chain                string  `json:"chain"`
	Blocks               int64   `json:"blocks"`
	Headers              int64   `json:"headers"`
	BestBlockHash        string  `json:"bestblockhash"`
	VerificationProgress float64 `json:"verificationprogress"`
	Pruned               bool    `json:"pruned"`
}

// GetBlockchainInfo returns the chain state of the node.
func (c *BitcoindClient) GetBlockchainInfo(ctx context.Context) (*BlockchainInfo, error) {
	var res blockchainInfo
	if err := c.call(ctx, "getblockchaininfo", nil, &res); err != nil {
		return nil, err
	}
	info := BlockchainInfo(res)
	return &info, nil
}

// GetBlockCount returns the height of the best chain.
func (c *BitcoindClient) GetBlockCount(ctx context.Context) (int64, error) {
	var height int64
	if err := c.call(ctx, "getblockcount", nil, &height); err != nil {
		return 0, err
	}
	return height, nil
}

// ListUnspent lists wallet outputs.
func (c *BitcoindClient) ListUnspent(ctx context.Context, minConf, maxConf int, addresses []string) ([]UnspentOutput, error) {
	params := []interface{}{minConf, maxConf}
	if len(addresses) > 0 {
		params = append(params, addresses)
	}
	var res []btcjson.ListUnspentResult
	if err := c.call(ctx, "listunspent", params, &res); err != nil {
		return nil, err
	}

	outs := make([]UnspentOutput, 0, len(res))
	for _, r := range res {
		txid, err := chainhash.NewHashFromStr(r.TxID)
		if err != nil {
			return nil, errors.Wrapf(ErrDecoding, "listunspent txid %q: %s", r.TxID, err)
		}
		script, err := hex.DecodeString(r.ScriptPubKey)
		if err != nil {
			return nil, errors.Wrapf(ErrDecoding, "listunspent scriptPubKey: %s", err)
		}
		amount, err := btcutil.NewAmount(r.Amount)
		if err != nil {
			return nil, errors.Wrapf(ErrDecoding, "listunspent amount: %s", err)
		}
		outs = append(outs, UnspentOutput{
			TxID:          *txid,
			Vout:          r.Vout,
			Address:       r.Address,
			ScriptPubKey:  script,
			Amount:        amount,
			Confirmations: r.Confirmations,
		})
	}
	return outs, nil
}

// GetTransaction returns a wallet transaction.
func (c *BitcoindClient) GetTransaction(ctx context.Context, txid chainhash.Hash) (*WalletTransaction, error) {
	var res btcjson.GetTransactionResult
	err := c.call(ctx, "gettransaction", []interface{}{txid.String()}, &res)
	if isRPCCode(err, btcjson.ErrRPCInvalidAddressOrKey) {
		return nil, errors.Wrapf(ErrNotFound, "transaction %s", txid)
	}
	if err != nil {
		return nil, err
	}

	amount, err := btcutil.NewAmount(res.Amount)
	if err != nil {
		return nil, errors.Wrap(ErrDecoding, err.Error())
	}
	fee, err := btcutil.NewAmount(res.Fee)
	if err != nil {
		return nil, errors.Wrap(ErrDecoding, err.Error())
	}
	raw, err := hex.DecodeString(res.Hex)
	if err != nil {
		return nil, errors.Wrapf(ErrDecoding, "transaction hex: %s", err)
	}
	return &WalletTransaction{
		TxID:          txid,
		Amount:        amount,
		Fee:           fee,
		Confirmations: res.Confirmations,
		BlockHash:     res.BlockHash,
		Time:          time.Unix(res.Time, 0),
		Raw:           raw,
	}, nil
}

func isRPCCode(err error, code btcjson.RPCErrorCode) bool {
	rpcErr, ok := err.(*btcjson.RPCError)
	return ok && rpcErr.Code == code
}
