package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/P-juuny/tsp-prob/dispatch/metrics"
	"github.com/P-juuny/tsp-prob/dispatch/store"
	"github.com/P-juuny/tsp-prob/dispatch/zone"
	"github.com/P-juuny/tsp-prob/pkg/seoul"
)

type webhookRequest struct {
	ParcelID      int64 `json:"parcel_id"`
	ParcelIDCamel int64 `json:"parcelId"`
}

func (req webhookRequest) id() int64 {
	if req.ParcelID != 0 {
		return req.ParcelID
	}
	return req.ParcelIDCamel
}

// handleWebhook assigns a pickup driver to a newly created parcel. Receipt at
// or after the 12:00 cutoff schedules the pickup for the next day.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	var req webhookRequest
	if err := decodeJSON(r, &req); err != nil || req.id() == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "parcel_id is required"})
		return
	}
	parcelID := req.id()

	parcel, err := s.store.GetParcel(r.Context(), parcelID)
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "parcel not found"})
		return
	}
	if err != nil {
		s.log.Error("webhook: parcel lookup failed", "parcel_id", parcelID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if parcel.PickupDriverID != nil {
		metrics.WebhooksTotal.WithLabelValues("already_processed").Inc()
		writeJSON(w, http.StatusOK, map[string]string{"status": "already_processed"})
		return
	}

	district := s.resolveDistrict(r.Context(), parcel.RecipientAddr)
	if district == "" {
		metrics.WebhooksTotal.WithLabelValues("no_district").Inc()
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "could not determine district"})
		return
	}
	driverID, z, ok := zone.PickupDriver(district)
	if !ok {
		metrics.WebhooksTotal.WithLabelValues("no_district").Inc()
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid district"})
		return
	}

	now := s.pickup.Now()
	today := s.pickup.Today()
	scheduledDate := today
	tomorrow := now.Hour() >= s.pickup.Side().CutoffHour
	if tomorrow {
		scheduledDate = today.AddDate(0, 0, 1)
	}

	if err := s.store.AssignPickupDriver(r.Context(), parcelID, driverID, scheduledDate); err != nil {
		if errors.Is(err, store.ErrConflict) {
			// Lost a race with a concurrent webhook for the same parcel.
			metrics.WebhooksTotal.WithLabelValues("already_processed").Inc()
			writeJSON(w, http.StatusOK, map[string]string{"status": "already_processed"})
			return
		}
		s.log.Error("webhook: driver assignment failed", "parcel_id", parcelID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to assign driver"})
		return
	}

	s.log.Info("webhook: pickup assigned",
		"parcel_id", parcelID,
		"district", district,
		"zone", z,
		"driver_id", driverID,
		"scheduled_date", scheduledDate.Format(time.DateOnly),
	)
	if tomorrow {
		metrics.WebhooksTotal.WithLabelValues("scheduled_tomorrow").Inc()
		writeJSON(w, http.StatusOK, map[string]any{
			"status":         "scheduled_tomorrow",
			"parcel_id":      parcelID,
			"district":       district,
			"zone":           z,
			"driverId":       driverID,
			"scheduled_date": scheduledDate.Format(time.DateOnly),
		})
		return
	}
	metrics.WebhooksTotal.WithLabelValues("assigned").Inc()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "success",
		"parcel_id":     parcelID,
		"district":      district,
		"zone":          z,
		"driverId":      driverID,
		"scheduled_for": "today",
	})
}

// resolveDistrict prefers the live geocoder's district and falls back to the
// "…구" token in the address text.
func (s *Server) resolveDistrict(ctx context.Context, address string) string {
	if s.geocoder != nil {
		if res, err := s.geocoder.Locate(ctx, address); err == nil && res.District != "" {
			return res.District
		}
	}
	return seoul.ExtractDistrict(address)
}
