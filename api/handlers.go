package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/xraph/premium"
	"github.com/xraph/premium/event"
	"github.com/xraph/premium/gate"
	"github.com/xraph/premium/payment"
	"github.com/xraph/premium/policy"
	"github.com/xraph/premium/types"
)

const (
	defaultEventLimit = 100
	maxEventLimit     = 1000
)

// Handler serves ledger operations.
type Handler struct {
	ledger *premium.Ledger
	logger *slog.Logger
}

type createPolicyResponse struct {
	ID int64 `json:"id"`
}

type subscribeRequest struct {
	PolicyID int64       `json:"policy_id"`
	Amount   types.Money `json:"amount"`
}

type payRequest struct {
	Amount types.Money `json:"amount"`
}

type dueResponse struct {
	SubscriberID string `json:"subscriber_id"`
	Due          bool   `json:"due"`
	DaysUntilDue int64  `json:"days_until_due"`
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.ledger.Store().Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ── Catalog ──────────────────────────────────────

func (h *Handler) handleListPolicies(w http.ResponseWriter, r *http.Request) {
	ids, err := h.ledger.GetAllPolicyIDs(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	policies := make([]policy.Policy, 0, len(ids))
	for _, policyID := range ids {
		p, err := h.ledger.GetPolicy(r.Context(), policyID)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		policies = append(policies, p)
	}
	respondWithJSON(w, http.StatusOK, policies)
}

func (h *Handler) handleGetPolicy(w http.ResponseWriter, r *http.Request) {
	policyID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "policy id must be an integer")
		return
	}

	p, err := h.ledger.GetPolicy(r.Context(), policyID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !p.Exists() {
		writeError(w, http.StatusNotFound, premium.ErrPolicyNotFound.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, p)
}

func (h *Handler) handleCreatePolicy(w http.ResponseWriter, r *http.Request) {
	var in policy.Input
	if !decode(w, r, &in) {
		return
	}

	policyID, err := h.ledger.CreatePolicy(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, createPolicyResponse{ID: policyID})
}

// ── Subscriptions ────────────────────────────────

func (h *Handler) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	actor, _ := gate.ActorFrom(r.Context())

	var req subscribeRequest
	if !decode(w, r, &req) {
		return
	}

	sub, err := h.ledger.Subscribe(r.Context(), actor.ID, req.PolicyID, req.Amount)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, sub)
}

func (h *Handler) handleGetSubscription(w http.ResponseWriter, r *http.Request) {
	sub, err := h.ledger.GetSubscription(r.Context(), chi.URLParam(r, "subscriber"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, sub)
}

func (h *Handler) handlePay(w http.ResponseWriter, r *http.Request) {
	subscriberID := chi.URLParam(r, "subscriber")
	if actor, _ := gate.ActorFrom(r.Context()); actor.ID != subscriberID {
		writeError(w, http.StatusForbidden, premium.ErrUnauthorized.Error())
		return
	}

	var req payRequest
	if !decode(w, r, &req) {
		return
	}

	sub, err := h.ledger.PayMonthlyPremium(r.Context(), subscriberID, req.Amount)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, sub)
}

func (h *Handler) handleListPayments(w http.ResponseWriter, r *http.Request) {
	records, err := h.ledger.GetPaymentHistory(r.Context(), chi.URLParam(r, "subscriber"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if records == nil {
		records = []*payment.Record{}
	}
	respondWithJSON(w, http.StatusOK, records)
}

func (h *Handler) handleReconcile(w http.ResponseWriter, r *http.Request) {
	subscriberID := chi.URLParam(r, "subscriber")
	if err := h.ledger.CheckPaymentStatus(r.Context(), subscriberID); err != nil {
		h.fail(w, r, err)
		return
	}

	sub, err := h.ledger.GetSubscription(r.Context(), subscriberID)
	if errors.Is(err, premium.ErrNoSubscription) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, sub)
}

func (h *Handler) handleDue(w http.ResponseWriter, r *http.Request) {
	subscriberID := chi.URLParam(r, "subscriber")

	due, err := h.ledger.IsPaymentDue(r.Context(), subscriberID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	days, err := h.ledger.GetDaysUntilDue(r.Context(), subscriberID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, dueResponse{
		SubscriberID: subscriberID,
		Due:          due,
		DaysUntilDue: days,
	})
}

// ── Events ───────────────────────────────────────

func (h *Handler) handleListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := event.ListOpts{
		SubscriberID: q.Get("subscriber"),
		Limit:        defaultEventLimit,
	}

	if v := q.Get("after"); v != "" {
		after, err := strconv.ParseInt(v, 10, 64)
		if err != nil || after < 0 {
			writeError(w, http.StatusBadRequest, "after must be a non-negative integer")
			return
		}
		opts.AfterSeq = after
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		opts.Limit = min(limit, maxEventLimit)
	}

	events, err := h.ledger.Events(r.Context(), opts)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if events == nil {
		events = []*event.Event{}
	}
	respondWithJSON(w, http.StatusOK, events)
}

// ── Helpers ──────────────────────────────────────

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
	}
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	writeError(w, status, msg)
}
