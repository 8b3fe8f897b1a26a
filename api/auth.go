package api

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
)

// AuthenticationMiddleware is a function which will be called for each request.
// It checks if the IP is on the whitelist and validates basic authentication,
// if set in the config.
func (g *Gateway) AuthenticationMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(g.config.AllowedIPs) > 0 {
			host, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				host = r.RemoteAddr
			}
			if !g.config.AllowedIPs[host] {
				log.Warningf("Rejected API request from %s", host)
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
		}
		if g.config.Username != "" && g.config.Password != "" {
			username, password, ok := r.BasicAuth()
			h := sha256.Sum256([]byte(password))
			password = hex.EncodeToString(h[:])
			if !ok || username != g.config.Username || password != g.config.Password {
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
