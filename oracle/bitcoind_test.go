package oracle

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcutil"
	"github.com/jarcoal/httpmock"
	"github.com/pkg/errors"
	"net/http"
	"testing"
)

const testHost = "http://127.0.0.1:18332/"

type rpcHandler func(params []json.RawMessage) (interface{}, *btcjson.RPCError)

func newMockedClient(t *testing.T, handlers map[string]rpcHandler) *BitcoindClient {
	t.Helper()
	client := NewBitcoindClient(ClientConfig{
		Host:   testHost,
		User:   "user",
		Pass:   "pass",
		Params: &chaincfg.TestNet3Params,
	})
	httpmock.ActivateNonDefault(client.client)

	httpmock.RegisterResponder(http.MethodPost, testHost,
		func(req *http.Request) (*http.Response, error) {
			user, pass, ok := req.BasicAuth()
			if !ok || user != "user" || pass != "pass" {
				return httpmock.NewStringResponse(http.StatusUnauthorized, ""), nil
			}
			var rpcReq struct {
				ID     uint64            `json:"id"`
				Method string            `json:"method"`
				Params []json.RawMessage `json:"params"`
			}
			if err := json.NewDecoder(req.Body).Decode(&rpcReq); err != nil {
				t.Fatal(err)
			}
			handler, ok := handlers[rpcReq.Method]
			if !ok {
				t.Fatalf("Unexpected rpc method %s", rpcReq.Method)
			}
			result, rpcErr := handler(rpcReq.Params)
			resp := map[string]interface{}{
				"result": result,
				"error":  rpcErr,
				"id":     rpcReq.ID,
			}
			status := http.StatusOK
			if rpcErr != nil {
				status = http.StatusInternalServerError
			}
			return httpmock.NewJsonResponse(status, resp)
		},
	)
	return client
}

var testTxid = "6f7cf9580f1c2dfb3c4d5d043cdbb128c640e3f20161245aa7372e9666168516"

func TestBitcoindClient_GetUTXO(t *testing.T) {
	script := "0020" + "a1b2c3d4e5f60718293a4b5c6d7e8f90a1b2c3d4e5f60718293a4b5c6d7e8f90"
	client := newMockedClient(t, map[string]rpcHandler{
		"gettxout": func(params []json.RawMessage) (interface{}, *btcjson.RPCError) {
			var vout uint32
			if err := json.Unmarshal(params[1], &vout); err != nil {
				t.Fatal(err)
			}
			switch vout {
			case 0:
				return map[string]interface{}{
					"bestblock":     "00000000000000000000",
					"confirmations": 3,
					"value":         0.001,
					"scriptPubKey": map[string]interface{}{
						"hex":  script,
						"type": "witness_v0_scripthash",
					},
					"coinbase": false,
				}, nil
			case 1:
				return nil, nil
			default:
				return nil, &btcjson.RPCError{Code: btcjson.ErrRPCInvalidAddressOrKey, Message: "Invalid or non-wallet transaction id"}
			}
		},
	})
	defer httpmock.DeactivateAndReset()

	txid, err := chainhash.NewHashFromStr(testTxid)
	if err != nil {
		t.Fatal(err)
	}

	utxo, err := client.GetUTXO(context.Background(), *txid, 0)
	if err != nil {
		t.Fatal(err)
	}
	if utxo.Amount != 100000 {
		t.Errorf("Expected amount %d, got %d", 100000, utxo.Amount)
	}
	if utxo.Confirmations != 3 {
		t.Errorf("Expected %d confirmations, got %d", 3, utxo.Confirmations)
	}
	if hex.EncodeToString(utxo.LockingScript) != script {
		t.Errorf("Expected script %s, got %x", script, utxo.LockingScript)
	}
	if utxo.TxID != *txid || utxo.OutputIndex != 0 {
		t.Errorf("Incorrect outpoint %s:%d", utxo.TxID, utxo.OutputIndex)
	}

	if _, err := client.GetUTXO(context.Background(), *txid, 1); errors.Cause(err) != ErrNotFound {
		t.Errorf("Expected %v for spent output, got %v", ErrNotFound, err)
	}
	if _, err := client.GetUTXO(context.Background(), *txid, 2); errors.Cause(err) != ErrNotFound {
		t.Errorf("Expected %v for unknown txid, got %v", ErrNotFound, err)
	}
}

func TestBitcoindClient_Broadcast(t *testing.T) {
	reject := false
	client := newMockedClient(t, map[string]rpcHandler{
		"sendrawtransaction": func(params []json.RawMessage) (interface{}, *btcjson.RPCError) {
			if reject {
				return nil, &btcjson.RPCError{Code: -26, Message: "non-mandatory-script-verify-flag"}
			}
			return testTxid, nil
		},
	})
	defer httpmock.DeactivateAndReset()

	txid, err := client.Broadcast(context.Background(), []byte{0x01, 0x02})
	if err != nil {
		t.Fatal(err)
	}
	if txid.String() != testTxid {
		t.Errorf("Expected txid %s, got %s", testTxid, txid)
	}

	reject = true
	if _, err := client.Broadcast(context.Background(), []byte{0x01, 0x02}); errors.Cause(err) != ErrRejected {
		t.Errorf("Expected %v, got %v", ErrRejected, err)
	}
}

func TestBitcoindClient_MalformedResponse(t *testing.T) {
	client := NewBitcoindClient(ClientConfig{Host: testHost})
	httpmock.ActivateNonDefault(client.client)
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodPost, testHost,
		httpmock.NewStringResponder(http.StatusOK, "<html>not json</html>"))

	if _, err := client.GetBlockCount(context.Background()); errors.Cause(err) != ErrDecoding {
		t.Errorf("Expected %v, got %v", ErrDecoding, err)
	}
}

func TestBitcoindClient_Unauthorized(t *testing.T) {
	client := NewBitcoindClient(ClientConfig{Host: testHost, User: "wrong", Pass: "wrong"})
	httpmock.ActivateNonDefault(client.client)
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodPost, testHost,
		httpmock.NewStringResponder(http.StatusUnauthorized, ""))

	if _, err := client.GetBlockCount(context.Background()); err == nil {
		t.Error("Expected authentication error")
	}
}

func TestBitcoindClient_GetNewAddress(t *testing.T) {
	addr := "tb1qw508d6qejxtdg4y5r3zarvary0c5xw7kxpjzsx"
	client := newMockedClient(t, map[string]rpcHandler{
		"getnewaddress": func(params []json.RawMessage) (interface{}, *btcjson.RPCError) {
			var addrType string
			if err := json.Unmarshal(params[1], &addrType); err != nil {
				t.Fatal(err)
			}
			if addrType != "bech32" {
				t.Errorf("Expected bech32 address type, got %s", addrType)
			}
			return addr, nil
		},
	})
	defer httpmock.DeactivateAndReset()

	got, err := client.GetNewAddress(context.Background(), "multisig")
	if err != nil {
		t.Fatal(err)
	}
	if got != addr {
		t.Errorf("Expected %s, got %s", addr, got)
	}

	client.params = &chaincfg.MainNetParams
	if _, err := client.GetNewAddress(context.Background(), "multisig"); errors.Cause(err) != ErrDecoding {
		t.Errorf("Expected %v for wrong network, got %v", ErrDecoding, err)
	}
}

func TestBitcoindClient_ListUnspent(t *testing.T) {
	client := newMockedClient(t, map[string]rpcHandler{
		"listunspent": func(params []json.RawMessage) (interface{}, *btcjson.RPCError) {
			if len(params) != 3 {
				t.Errorf("Expected 3 params, got %d", len(params))
			}
			return []map[string]interface{}{
				{
					"txid":          testTxid,
					"vout":          1,
					"address":       "tb1qw508d6qejxtdg4y5r3zarvary0c5xw7kxpjzsx",
					"scriptPubKey":  "0014751e76e8199196d454941c45d1b3a323f1433bd6",
					"amount":        0.5,
					"confirmations": 10,
					"spendable":     true,
				},
			}, nil
		},
	})
	defer httpmock.DeactivateAndReset()

	outs, err := client.ListUnspent(context.Background(), 1, 9999999, []string{"tb1qw508d6qejxtdg4y5r3zarvary0c5xw7kxpjzsx"})
	if err != nil {
		t.Fatal(err)
	}
	if len(outs) != 1 {
		t.Fatalf("Expected 1 output, got %d", len(outs))
	}
	if outs[0].Amount != btcutil.Amount(50000000) {
		t.Errorf("Expected amount %d, got %d", 50000000, outs[0].Amount)
	}
	if outs[0].TxID.String() != testTxid || outs[0].Vout != 1 {
		t.Errorf("Incorrect outpoint %s:%d", outs[0].TxID, outs[0].Vout)
	}
	if outs[0].Confirmations != 10 {
		t.Errorf("Expected %d confirmations, got %d", 10, outs[0].Confirmations)
	}
}

func TestBitcoindClient_GetBlockchainInfo(t *testing.T) {
	client := newMockedClient(t, map[string]rpcHandler{
		"getblockchaininfo": func(params []json.RawMessage) (interface{}, *btcjson.RPCError) {
			return map[string]interface{}{
				"chain":                "test",
				"blocks":               1000,
				"headers":              1001,
				"bestblockhash":        testTxid,
				"verificationprogress": 0.99,
				"pruned":               false,
				"softforks": map[string]interface{}{
					"segwit": map[string]interface{}{"type": "buried", "active": true, "height": 834624},
				},
			}, nil
		},
		"getblockcount": func(params []json.RawMessage) (interface{}, *btcjson.RPCError) {
			return 1000, nil
		},
	})
	defer httpmock.DeactivateAndReset()

	info, err := client.GetBlockchainInfo(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if info.Chain != "test" {
		t.Errorf("Expected chain %s, got %s", "test", info.Chain)
	}
	if info.Blocks != 1000 || info.Headers != 1001 {
		t.Errorf("Incorrect heights %d/%d", info.Blocks, info.Headers)
	}

	height, err := client.GetBlockCount(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if height != 1000 {
		t.Errorf("Expected height %d, got %d", 1000, height)
	}
}

func TestBitcoindClient_GetTransaction(t *testing.T) {
	client := newMockedClient(t, map[string]rpcHandler{
		"gettransaction": func(params []json.RawMessage) (interface{}, *btcjson.RPCError) {
			var txid string
			if err := json.Unmarshal(params[0], &txid); err != nil {
				t.Fatal(err)
			}
			if txid != testTxid {
				return nil, &btcjson.RPCError{Code: btcjson.ErrRPCInvalidAddressOrKey, Message: "Invalid or non-wallet transaction id"}
			}
			return map[string]interface{}{
				"amount":          -0.001,
				"fee":             -0.0001,
				"confirmations":   2,
				"blockhash":       testTxid,
				"blockindex":      1,
				"blocktime":       1500000000,
				"txid":            testTxid,
				"walletconflicts": []string{},
				"time":            1500000000,
				"timereceived":    1500000000,
				"details":         []interface{}{},
				"hex":             "0200",
			}, nil
		},
	})
	defer httpmock.DeactivateAndReset()

	txid, err := chainhash.NewHashFromStr(testTxid)
	if err != nil {
		t.Fatal(err)
	}
	tx, err := client.GetTransaction(context.Background(), *txid)
	if err != nil {
		t.Fatal(err)
	}
	if tx.Confirmations != 2 {
		t.Errorf("Expected %d confirmations, got %d", 2, tx.Confirmations)
	}
	if tx.Fee != btcutil.Amount(-10000) {
		t.Errorf("Expected fee %d, got %d", -10000, tx.Fee)
	}
	if hex.EncodeToString(tx.Raw) != "0200" {
		t.Errorf("Expected raw %s, got %x", "0200", tx.Raw)
	}

	other := chainhash.DoubleHashH([]byte("other"))
	if _, err := client.GetTransaction(context.Background(), other); errors.Cause(err) != ErrNotFound {
		t.Errorf("Expected %v, got %v", ErrNotFound, err)
	}
}
