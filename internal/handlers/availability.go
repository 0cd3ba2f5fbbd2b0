package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/clinicboard/clinicboard/internal/availability"
)

// SlotCalculator is what the availability handler needs from the engine.
type SlotCalculator interface {
	Calculate(ctx context.Context, serviceCode, date string) (*availability.Result, error)
}

type AvailabilityHandler struct {
	calc      SlotCalculator
	logger    *slog.Logger
	maxAgeSec int
}

func NewAvailabilityHandler(calc SlotCalculator, logger *slog.Logger, maxAgeSec int) *AvailabilityHandler {
	if maxAgeSec <= 0 {
		maxAgeSec = 60
	}
	return &AvailabilityHandler{calc: calc, logger: logger, maxAgeSec: maxAgeSec}
}

type slotsResponse struct {
	Success      bool                   `json:"success"`
	ClinicClosed bool                   `json:"clinic_closed,omitempty"`
	Message      string                 `json:"message,omitempty"`
	Slots        []availability.TimeSlot `json:"slots"`
	Metadata     availability.Metadata  `json:"metadata"`
	Usage        *availability.DayUsage `json:"usage,omitempty"`
}

// Slots serves GET /api/v1/slots?service_code=&date=. Responses are
// advisory; the booking path re-validates, so short shared caching is safe.
func (h *AvailabilityHandler) Slots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	serviceCode := strings.TrimSpace(q.Get("service_code"))
	date := strings.TrimSpace(q.Get("date"))

	res, err := h.calc.Calculate(r.Context(), serviceCode, date)
	if err != nil {
		writeEngineError(w, h.logger, err)
		return
	}

	resp := slotsResponse{
		Success:      true,
		ClinicClosed: res.ClinicClosed,
		Message:      res.Message,
		Slots:        res.Slots,
		Metadata:     res.Metadata,
	}
	if resp.Slots == nil {
		resp.Slots = []availability.TimeSlot{}
	}
	// Intermediate accounting figures stay internal unless explicitly asked for.
	if q.Get("debug") == "true" {
		usage := res.Usage
		resp.Usage = &usage
	}

	w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", h.maxAgeSec))
	writeJSON(w, http.StatusOK, resp)
}
