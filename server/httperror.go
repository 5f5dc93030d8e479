package server

import (
	"encoding/json"
	"net/http"

	"github.com/marketedge/auth-service/internal/autherr"
	"github.com/rs/zerolog/log"
)

// errorBody is the structured error every failure surfaces as. The code is
// stable; the description is safe for end users. Stack traces and upstream
// provider errors never leave the service.
type errorBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func writeError(w http.ResponseWriter, err error) {
	ae, ok := autherr.FromErr(err)
	if !ok {
		log.Error().Err(err).Msg("unhandled error in request handler")
		writeJSON(w, http.StatusInternalServerError, errorBody{
			Error:            "internal_error",
			ErrorDescription: "an internal error occurred",
		})
		return
	}

	if autherr.Security(err) {
		log.Warn().Err(err).Str("code", string(ae.Code)).Msg("security-sensitive auth failure")
	}

	body := errorBody{Error: string(ae.Code), ErrorDescription: ae.Message}
	if ae.Code == autherr.CodeUpstreamUnavailable {
		// Don't leak the provider's raw failure to clients.
		body.ErrorDescription = "identity provider temporarily unavailable"
	}
	writeJSON(w, autherr.HTTPStatus(err), body)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("failed to encode response body")
	}
}
