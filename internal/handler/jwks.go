package handler

import "net/http"

// JWKS publishes the verification key set. The document contains no secret
// material and is safe to cache publicly.
func (h *AuthHandler) JWKS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "public, max-age=3600")
	h.respondJSON(w, http.StatusOK, h.codec.KeySet())
}
