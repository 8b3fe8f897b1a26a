package api

import (
	"encoding/hex"
	"net/http"
)

func (g *Gateway) handleGETAddress(w http.ResponseWriter, r *http.Request) {
	commitment, err := g.node.GetCommitment()
	if err != nil {
		httpError(w, err)
		return
	}
	sanitizedJSONResponse(w, commitment)
}

func (g *Gateway) handleGETPublicKeys(w http.ResponseWriter, r *http.Request) {
	pubKeys, err := g.node.GetPublicKeys()
	if err != nil {
		httpError(w, err)
		return
	}
	ret := make([]string, 0, len(pubKeys))
	for _, k := range pubKeys {
		ret = append(ret, hex.EncodeToString(k))
	}
	sanitizedJSONResponse(w, ret)
}

func (g *Gateway) handleGETStatus(w http.ResponseWriter, r *http.Request) {
	status, err := g.node.Status(r.Context())
	if err != nil {
		httpError(w, err)
		return
	}
	sanitizedJSONResponse(w, status)
}
