package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"prop-risk-engine-go/internal/models"
	"prop-risk-engine-go/internal/risk"
	"prop-risk-engine-go/internal/trading"
)

type registerRequest struct {
	Username string `json:"username"`
	Plan     string `json:"plan"`
}

type purchaseRequest struct {
	Plan string `json:"plan"`
}

type accountResponse struct {
	Account *models.Account `json:"account"`
	Rules   *models.RuleSet `json:"rules"`
}

type canTradeResponse struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}

func (s *Server) plansHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.trading.Plans())
}

func (s *Server) registerHandler(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !s.decode(w, r, &req) {
		return
	}

	account, err := s.trading.RegisterAccount(r.Context(), req.Username, req.Plan)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, account)
}

func (s *Server) accountHandler(w http.ResponseWriter, r *http.Request) {
	account, rules, err := s.store.Load(r.Context(), chi.URLParam(r, "accountID"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, accountResponse{Account: account, Rules: rules})
}

// riskCheckHandler runs a full evaluation pass, which may change the status.
func (s *Server) riskCheckHandler(w http.ResponseWriter, r *http.Request) {
	res, err := s.evaluator.Evaluate(r.Context(), chi.URLParam(r, "accountID"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) riskMetricsHandler(w http.ResponseWriter, r *http.Request) {
	snap, err := s.evaluator.Snapshot(r.Context(), chi.URLParam(r, "accountID"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

func (s *Server) canTradeHandler(w http.ResponseWriter, r *http.Request) {
	allowed, reason, err := s.evaluator.CanTrade(r.Context(), chi.URLParam(r, "accountID"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, canTradeResponse{Allowed: allowed, Reason: reason})
}

// tradesHandler returns the account's positions, most recent first.
func (s *Server) tradesHandler(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")

	var status *models.PositionStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		parsed, err := models.ParsePositionStatus(raw)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		status = &parsed
	}

	if _, err := s.store.GetAccount(r.Context(), accountID); err != nil {
		s.writeServiceError(w, err)
		return
	}
	positions, err := s.store.Positions(r.Context(), accountID, status)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, positions)
}

func (s *Server) openTradeHandler(w http.ResponseWriter, r *http.Request) {
	var req trading.OpenRequest
	if !s.decode(w, r, &req) {
		return
	}
	req.AccountID = chi.URLParam(r, "accountID")

	res, err := s.trading.OpenTrade(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if !res.Allowed {
		s.writeJSON(w, http.StatusForbidden, res)
		return
	}
	s.writeJSON(w, http.StatusCreated, res)
}

func (s *Server) closeTradeHandler(w http.ResponseWriter, r *http.Request) {
	positionID, err := strconv.ParseUint(chi.URLParam(r, "positionID"), 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid position id")
		return
	}

	res, err := s.trading.CloseTrade(r.Context(), chi.URLParam(r, "accountID"), uint(positionID))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

// challengesHandler returns every rule set the account has held, newest first.
func (s *Server) challengesHandler(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	if _, err := s.store.GetAccount(r.Context(), accountID); err != nil {
		s.writeServiceError(w, err)
		return
	}
	history, err := s.store.RuleSets(r.Context(), accountID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, history)
}

func (s *Server) purchaseChallengeHandler(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
	if !s.decode(w, r, &req) {
		return
	}

	account, err := s.trading.PurchaseChallenge(r.Context(), chi.URLParam(r, "accountID"), req.Plan)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, account)
}

func (s *Server) statisticsHandler(w http.ResponseWriter, r *http.Request) {
	stats, err := s.trading.Statistics(r.Context(), chi.URLParam(r, "accountID"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("Failed to encode JSON response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// writeServiceError maps domain errors to HTTP statuses.
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	var cfgErr *risk.ConfigError
	switch {
	case errors.Is(err, models.ErrAccountNotFound),
		errors.Is(err, models.ErrRuleSetNotFound),
		errors.Is(err, models.ErrPositionNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, models.ErrPositionClosed),
		errors.Is(err, models.ErrUsernameTaken):
		s.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, trading.ErrInvalidOrder),
		errors.Is(err, trading.ErrInvalidSignup),
		errors.Is(err, trading.ErrUnknownPlan),
		errors.Is(err, trading.ErrNoMarketData),
		errors.Is(err, trading.ErrInsufficientEquity):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &cfgErr):
		s.logger.Error("Account misconfigured", zap.String("account_id", cfgErr.AccountID), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, cfgErr.Error())
	default:
		s.logger.Error("Request failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "internal error")
	}
}
