package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/xraph/premium"
)

var errorStatus = []struct {
	err    error
	status int
}{
	{premium.ErrInvalidInput, http.StatusBadRequest},
	{premium.ErrUnauthorized, http.StatusForbidden},
	{premium.ErrNoSubscription, http.StatusNotFound},
	{premium.ErrPolicyNotFound, http.StatusNotFound},
	{premium.ErrAlreadySubscribed, http.StatusConflict},
	{premium.ErrConcurrentUpdate, http.StatusConflict},
	{premium.ErrInvalidTransition, http.StatusConflict},
	{premium.ErrInvalidPolicyID, http.StatusUnprocessableEntity},
	{premium.ErrIncorrectAmount, http.StatusUnprocessableEntity},
	{premium.ErrPolicyExpired, http.StatusUnprocessableEntity},
	{premium.ErrPaymentNotYetDue, http.StatusUnprocessableEntity},
	{premium.ErrTransferFailed, http.StatusBadGateway},
	{premium.ErrStoreNotReady, http.StatusServiceUnavailable},
	{premium.ErrStoreClosed, http.StatusServiceUnavailable},
}

// statusFor maps an engine error to an HTTP status. Unknown errors are 500.
func statusFor(err error) int {
	for _, e := range errorStatus {
		if errors.Is(err, e.err) {
			return e.status
		}
	}
	return http.StatusInternalServerError
}

type errorBody struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	respondWithJSON(w, status, errorBody{Error: msg})
}

func respondWithJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
