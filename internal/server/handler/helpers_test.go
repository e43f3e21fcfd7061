package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/jakeharveyy/tipengine/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWriteDomainError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   string
	}{
		{"not found", domain.ErrNotFound, http.StatusNotFound, "not found"},
		{"duplicate user", domain.ErrAlreadyExists, http.StatusConflict, "already exists"},
		{"resettle", domain.ErrAlreadySettled, http.StatusConflict, "match already settled"},
		{"double bonus", domain.ErrBonusAlreadyApplied, http.StatusConflict, "round bonus already applied"},
		{"poor funds", domain.ErrInsufficientFunds, http.StatusPaymentRequired, "insufficient funds"},
		{"kickoff passed", domain.ErrBettingClosed, http.StatusBadRequest, "betting closed for this match"},
		{"bad team", domain.ErrInvalidSelection, http.StatusBadRequest, "selected team is not in this match"},
		{"unpriced", domain.ErrOddsUnavailable, http.StatusBadRequest, "odds not available for this selection"},
		{"bad stake", domain.ErrInvalidStake, http.StatusBadRequest, "stake must be positive with at most two decimal places"},
		{"throttled", domain.ErrRateLimited, http.StatusTooManyRequests, "rate limited"},
		{"bad key", domain.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/api/test", nil)

			// Services hand errors up wrapped; matching must see through that.
			writeDomainError(rec, req, discardLogger(), fmt.Errorf("service: action: %w", tt.err))

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			var body map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("unmarshal body: %v", err)
			}
			if body["error"] != tt.wantBody {
				t.Errorf("error = %q, want %q", body["error"], tt.wantBody)
			}
		})
	}
}

// Unrecognized errors must not leak internals to the client.
func TestWriteDomainErrorHidesUnknown(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/test", nil)

	writeDomainError(rec, req, discardLogger(), fmt.Errorf("store: connection refused to 10.0.0.5"))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if body["error"] != "internal server error" {
		t.Errorf("error = %q, want generic message", body["error"])
	}
}

func TestStatusFilter(t *testing.T) {
	tests := []struct {
		value  string
		want   []domain.BetStatus
		wantOK bool
	}{
		{"", nil, true},
		{"Settled", domain.SettledStatuses, true},
		{"Pending", []domain.BetStatus{domain.BetStatusPending}, true},
		{"Won", []domain.BetStatus{domain.BetStatusWon}, true},
		{"Lost", []domain.BetStatus{domain.BetStatusLost}, true},
		{"Void", []domain.BetStatus{domain.BetStatusVoid}, true},
		{"settled", nil, false},
		{"Everything", nil, false},
	}
	for _, tt := range tests {
		got, ok := statusFilter(tt.value)
		if ok != tt.wantOK {
			t.Errorf("statusFilter(%q) ok = %v, want %v", tt.value, ok, tt.wantOK)
			continue
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("statusFilter(%q) = %v, want %v", tt.value, got, tt.want)
		}
	}
}
