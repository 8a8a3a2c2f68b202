package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/xraph/premium"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{premium.ValidationError{Field: "subscriber_id", Message: "must not be empty"}, http.StatusBadRequest},
		{premium.ErrUnauthorized, http.StatusForbidden},
		{premium.ErrNoSubscription, http.StatusNotFound},
		{premium.ErrAlreadySubscribed, http.StatusConflict},
		{premium.ErrInvalidTransition, http.StatusConflict},
		{premium.ErrIncorrectAmount, http.StatusUnprocessableEntity},
		{premium.ErrPaymentNotYetDue, http.StatusUnprocessableEntity},
		{premium.ErrPolicyExpired, http.StatusUnprocessableEntity},
		{fmt.Errorf("%w: %w", premium.ErrTransferFailed, errors.New("declined")), http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			if got := statusFor(tt.err); got != tt.want {
				t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}
