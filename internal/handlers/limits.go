package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clinicboard/clinicboard/internal/availability"
	"github.com/clinicboard/clinicboard/internal/model"
	"github.com/clinicboard/clinicboard/internal/storage"
)

// LimitStore is the admin capacity-limit surface.
type LimitStore interface {
	Get(ctx context.Context, serviceID uuid.UUID) (*model.CapacityLimit, error)
	Upsert(ctx context.Context, lim *model.CapacityLimit) error
}

type LimitHandler struct {
	store   LimitStore
	catalog availability.ServiceCatalog
	logger  *slog.Logger
}

func NewLimitHandler(store LimitStore, catalog availability.ServiceCatalog, logger *slog.Logger) *LimitHandler {
	return &LimitHandler{store: store, catalog: catalog, logger: logger}
}

type limitBody struct {
	ServiceCode       string `json:"service_code"`
	IsActive          bool   `json:"is_active"`
	DailyLimit        *int   `json:"daily_limit,omitempty"`
	SoftDailyLimit    *int   `json:"soft_daily_limit,omitempty"`
	DailyLimitMinutes *int   `json:"daily_limit_minutes,omitempty"`
	UpdatedAt         string `json:"updated_at,omitempty"`
}

// Get returns the service's limit row, or an inactive default when none is
// configured yet.
func (h *LimitHandler) Get(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	code := strings.TrimSpace(r.URL.Query().Get("service_code"))
	svc, ok, err := h.resolveService(w, r, code)
	if !ok || err != nil {
		return
	}

	lim, err := h.store.Get(r.Context(), svc.ID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		// A missing row is a valid "unlimited" configuration, not a 404.
		lim = &model.CapacityLimit{ServiceID: svc.ID}
	case err != nil:
		writeStorageError(w, h.logger, err)
		return
	}

	body := limitBody{
		ServiceCode:       svc.Code,
		IsActive:          lim.IsActive,
		DailyLimit:        lim.DailyLimit,
		SoftDailyLimit:    lim.SoftDailyLimit,
		DailyLimitMinutes: lim.DailyLimitMinutes,
	}
	if !lim.UpdatedAt.IsZero() {
		body.UpdatedAt = lim.UpdatedAt.UTC().Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, struct {
		Success bool      `json:"success"`
		Limit   limitBody `json:"limit"`
	}{true, body})
}

// Put replaces the service's limit configuration. Exactly one of daily_limit
// and daily_limit_minutes may be set on an active limit, and a soft limit
// never exceeds the hard one.
func (h *LimitHandler) Put(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut && r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req limitBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, availability.CodeValidation, "invalid json body")
		return
	}
	svc, ok, err := h.resolveService(w, r, strings.TrimSpace(req.ServiceCode))
	if !ok || err != nil {
		return
	}

	if req.IsActive {
		if req.DailyLimit == nil && req.DailyLimitMinutes == nil {
			writeError(w, http.StatusBadRequest, availability.CodeValidation, "an active limit needs daily_limit or daily_limit_minutes")
			return
		}
		if req.DailyLimit != nil && req.DailyLimitMinutes != nil {
			writeError(w, http.StatusBadRequest, availability.CodeValidation, "set either daily_limit or daily_limit_minutes, not both")
			return
		}
	}
	if req.DailyLimit != nil && *req.DailyLimit <= 0 {
		writeError(w, http.StatusBadRequest, availability.CodeValidation, "daily_limit must be positive")
		return
	}
	if req.DailyLimitMinutes != nil && *req.DailyLimitMinutes <= 0 {
		writeError(w, http.StatusBadRequest, availability.CodeValidation, "daily_limit_minutes must be positive")
		return
	}
	if req.SoftDailyLimit != nil {
		if *req.SoftDailyLimit <= 0 {
			writeError(w, http.StatusBadRequest, availability.CodeValidation, "soft_daily_limit must be positive")
			return
		}
		if req.DailyLimit != nil && *req.SoftDailyLimit > *req.DailyLimit {
			writeError(w, http.StatusBadRequest, availability.CodeValidation, "soft_daily_limit cannot exceed daily_limit")
			return
		}
	}

	lim := &model.CapacityLimit{
		ServiceID:         svc.ID,
		IsActive:          req.IsActive,
		DailyLimit:        req.DailyLimit,
		SoftDailyLimit:    req.SoftDailyLimit,
		DailyLimitMinutes: req.DailyLimitMinutes,
	}
	if err := h.store.Upsert(r.Context(), lim); err != nil {
		writeStorageError(w, h.logger, err)
		return
	}

	// Limit changes affect every future date; cached entries converge through
	// the cache TTL rather than a per-date invalidation sweep.
	h.logger.Info("capacity limit updated", "service", svc.Code, "active", req.IsActive)

	req.ServiceCode = svc.Code
	req.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
	writeJSON(w, http.StatusOK, struct {
		Success bool      `json:"success"`
		Limit   limitBody `json:"limit"`
	}{true, req})
}

func (h *LimitHandler) resolveService(w http.ResponseWriter, r *http.Request, code string) (*model.Service, bool, error) {
	if code == "" {
		writeError(w, http.StatusBadRequest, availability.CodeValidation, "service_code is required")
		return nil, false, nil
	}
	svc, ok, err := h.catalog.ServiceByCode(r.Context(), code)
	if err != nil {
		writeEngineError(w, h.logger, availability.NewDependencyError("service catalog", err))
		return nil, false, err
	}
	if !ok {
		writeEngineError(w, h.logger, availability.NewServiceNotFound(code))
		return nil, false, nil
	}
	return svc, true, nil
}
