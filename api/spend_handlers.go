package api

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/cpacia/multisig/core/coreiface"
	"github.com/cpacia/multisig/models"
	"github.com/gorilla/mux"
	"net/http"
)

type beginSpendRequest struct {
	TxID        string `json:"txid"`
	Vout        uint32 `json:"vout"`
	Destination string `json:"destination"`
	Amount      int64  `json:"amount"`
}

type signatureRequest struct {
	SignerIndex int    `json:"signerIndex"`
	Signature   string `json:"signature"`
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

type psbtResponse struct {
	PSBT string `json:"psbt"`
}

func spendID(r *http.Request) models.SpendID {
	return models.SpendID(mux.Vars(r)["spendID"])
}

func (g *Gateway) handleGETSpends(w http.ResponseWriter, r *http.Request) {
	spends, err := g.node.ListSpends()
	if err != nil {
		httpError(w, err)
		return
	}
	if spends == nil {
		spends = []models.SpendSession{}
	}
	sanitizedJSONResponse(w, spends)
}

func (g *Gateway) handlePOSTSpend(w http.ResponseWriter, r *http.Request) {
	var req beginSpendRequest
	if err := decodeBody(r, &req); err != nil {
		httpError(w, err)
		return
	}
	txid, err := chainhash.NewHashFromStr(req.TxID)
	if err != nil {
		httpError(w, coreiface.Wrap(coreiface.ErrBadRequest, err))
		return
	}
	session, err := g.node.BeginSpend(r.Context(), *txid, req.Vout, req.Destination, req.Amount)
	if err != nil {
		httpError(w, err)
		return
	}
	sanitizedJSONResponse(w, session)
}

func (g *Gateway) handleGETSpend(w http.ResponseWriter, r *http.Request) {
	session, err := g.node.GetSpend(spendID(r))
	if err != nil {
		httpError(w, err)
		return
	}
	sanitizedJSONResponse(w, session)
}

func (g *Gateway) handleGETSpendHistory(w http.ResponseWriter, r *http.Request) {
	history, err := g.node.GetSpendHistory(spendID(r))
	if err != nil {
		httpError(w, err)
		return
	}
	if history == nil {
		history = []models.Event{}
	}
	sanitizedJSONResponse(w, history)
}

func (g *Gateway) handlePOSTSign(w http.ResponseWriter, r *http.Request) {
	var req signatureRequest
	if err := decodeBody(r, &req); err != nil {
		httpError(w, err)
		return
	}
	session, err := g.node.SignSpend(spendID(r), req.SignerIndex)
	if err != nil {
		httpError(w, err)
		return
	}
	sanitizedJSONResponse(w, session)
}

func (g *Gateway) handlePOSTSignature(w http.ResponseWriter, r *http.Request) {
	var req signatureRequest
	if err := decodeBody(r, &req); err != nil {
		httpError(w, err)
		return
	}
	session, err := g.node.AddSignature(spendID(r), req.SignerIndex, req.Signature)
	if err != nil {
		httpError(w, err)
		return
	}
	sanitizedJSONResponse(w, session)
}

func (g *Gateway) handlePOSTFinalize(w http.ResponseWriter, r *http.Request) {
	session, err := g.node.FinalizeSpend(spendID(r))
	if err != nil {
		httpError(w, err)
		return
	}
	sanitizedJSONResponse(w, session)
}

func (g *Gateway) handlePOSTBroadcast(w http.ResponseWriter, r *http.Request) {
	session, err := g.node.BroadcastSpend(r.Context(), spendID(r))
	if err != nil {
		httpError(w, err)
		return
	}
	sanitizedJSONResponse(w, session)
}

func (g *Gateway) handlePOSTCancel(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if r.ContentLength != 0 {
		if err := decodeBody(r, &req); err != nil {
			httpError(w, err)
			return
		}
	}
	session, err := g.node.CancelSpend(spendID(r), req.Reason)
	if err != nil {
		httpError(w, err)
		return
	}
	sanitizedJSONResponse(w, session)
}

func (g *Gateway) handleGETPSBT(w http.ResponseWriter, r *http.Request) {
	b64, err := g.node.ExportSpendPSBT(spendID(r))
	if err != nil {
		httpError(w, err)
		return
	}
	sanitizedJSONResponse(w, psbtResponse{PSBT: b64})
}

func (g *Gateway) handlePOSTPSBT(w http.ResponseWriter, r *http.Request) {
	var req psbtResponse
	if err := decodeBody(r, &req); err != nil {
		httpError(w, err)
		return
	}
	session, err := g.node.ImportSpendPSBT(spendID(r), req.PSBT)
	if err != nil {
		httpError(w, err)
		return
	}
	sanitizedJSONResponse(w, session)
}
