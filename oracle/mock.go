package oracle

import (
	"bytes"
	"context"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcutil"
	"github.com/cpacia/multisig/txbuilder"
	"github.com/pkg/errors"
	"sync"
	"time"
)

// MockOracle is an in-memory Oracle used in tests. Broadcast transactions
// have their scripts executed against the stored outputs before they are
// accepted.
type MockOracle struct {
	params *chaincfg.Params

	utxos      map[wire.OutPoint]txbuilder.UTXOReference
	broadcasts map[chainhash.Hash][]byte
	height     int64
	addrIndex  int
	rejectNext error

	mtx sync.Mutex
}

// NewMockOracle returns an empty MockOracle for the given network.
func NewMockOracle(params *chaincfg.Params) *MockOracle {
	if params == nil {
		params = &chaincfg.TestNet3Params
	}
	return &MockOracle{
		params:     params,
		utxos:      make(map[wire.OutPoint]txbuilder.UTXOReference),
		broadcasts: make(map[chainhash.Hash][]byte),
		height:     100,
	}
}

// AddUTXO makes an output known to the mock.
func (m *MockOracle) AddUTXO(utxo txbuilder.UTXOReference) {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	m.utxos[*utxo.OutPoint()] = utxo
}

// RejectNext makes the next Broadcast fail with ErrRejected wrapping err.
func (m *MockOracle) RejectNext(err error) {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	m.rejectNext = err
}

// Broadcasts returns the accepted transactions keyed by txid.
func (m *MockOracle) Broadcasts() map[chainhash.Hash][]byte {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	ret := make(map[chainhash.Hash][]byte, len(m.broadcasts))
	for k, v := range m.broadcasts {
		ret[k] = v
	}
	return ret
}

func (m *MockOracle) GetUTXO(ctx context.Context, txid chainhash.Hash, index uint32) (txbuilder.UTXOReference, error) {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	utxo, ok := m.utxos[*wire.NewOutPoint(&txid, index)]
	if !ok {
		return txbuilder.UTXOReference{}, errors.Wrapf(ErrNotFound, "utxo %s:%d", txid, index)
	}
	return utxo, nil
}

func (m *MockOracle) Broadcast(ctx context.Context, raw []byte) (chainhash.Hash, error) {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	if m.rejectNext != nil {
		err := m.rejectNext
		m.rejectNext = nil
		return chainhash.Hash{}, errors.Wrap(ErrRejected, err.Error())
	}

	tx := wire.NewMsgTx(wire.TxVersion)
	if err := tx.Deserialize(bytes.NewReader(raw)); err != nil {
		return chainhash.Hash{}, errors.Wrapf(ErrRejected, "TX decode failed: %s", err)
	}
	txid := tx.TxHash()
	if _, ok := m.broadcasts[txid]; ok {
		return txid, nil
	}

	for i, in := range tx.TxIn {
		prev, ok := m.utxos[in.PreviousOutPoint]
		if !ok {
			return chainhash.Hash{}, errors.Wrapf(ErrRejected, "missing inputs: %s", in.PreviousOutPoint)
		}
		vm, err := txscript.NewEngine(prev.LockingScript, tx, i, txscript.StandardVerifyFlags, nil, nil, prev.Amount)
		if err != nil {
			return chainhash.Hash{}, errors.Wrap(ErrRejected, err.Error())
		}
		if err := vm.Execute(); err != nil {
			return chainhash.Hash{}, errors.Wrapf(ErrRejected, "script verification failed: %s", err)
		}
	}

	for _, in := range tx.TxIn {
		delete(m.utxos, in.PreviousOutPoint)
	}
	for i, out := range tx.TxOut {
		m.utxos[*wire.NewOutPoint(&txid, uint32(i))] = txbuilder.UTXOReference{
			TxID:          txid,
			OutputIndex:   uint32(i),
			Amount:        out.Value,
			LockingScript: out.PkScript,
		}
	}
	m.broadcasts[txid] = raw
	return txid, nil
}

func (m *MockOracle) GetBalance(ctx context.Context) (btcutil.Amount, error) {
	return 0, nil
}

func (m *MockOracle) GetNewAddress(ctx context.Context, label string) (string, error) {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	m.addrIndex++
	h := chainhash.HashB([]byte{byte(m.addrIndex)})
	addr, err := btcutil.NewAddressWitnessPubKeyHash(h[:20], m.params)
	if err != nil {
		return "", err
	}
	return addr.EncodeAddress(), nil
}

func (m *MockOracle) GetBlockchainInfo(ctx context.Context) (*BlockchainInfo, error) {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	return &BlockchainInfo{
		Chain:                "test",
		Blocks:               m.height,
		Headers:              m.height,
		VerificationProgress: 1,
	}, nil
}

func (m *MockOracle) GetBlockCount(ctx context.Context) (int64, error) {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	return m.height, nil
}

func (m *MockOracle) ListUnspent(ctx context.Context, minConf, maxConf int, addresses []string) ([]UnspentOutput, error) {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	filter := make(map[string]bool)
	for _, a := range addresses {
		filter[a] = true
	}

	var outs []UnspentOutput
	for _, utxo := range m.utxos {
		if utxo.Confirmations < int64(minConf) || utxo.Confirmations > int64(maxConf) {
			continue
		}
		var addr string
		_, addrs, _, err := txscript.ExtractPkScriptAddrs(utxo.LockingScript, m.params)
		if err == nil && len(addrs) == 1 {
			addr = addrs[0].EncodeAddress()
		}
		if len(filter) > 0 && !filter[addr] {
			continue
		}
		outs = append(outs, UnspentOutput{
			TxID:          utxo.TxID,
			Vout:          utxo.OutputIndex,
			Address:       addr,
			ScriptPubKey:  utxo.LockingScript,
			Amount:        btcutil.Amount(utxo.Amount),
			Confirmations: utxo.Confirmations,
		})
	}
	return outs, nil
}

func (m *MockOracle) GetTransaction(ctx context.Context, txid chainhash.Hash) (*WalletTransaction, error) {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	raw, ok := m.broadcasts[txid]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "transaction %s", txid)
	}
	return &WalletTransaction{
		TxID: txid,
		Time: time.Now(),
		Raw:  raw,
	}, nil
}
