package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/P-juuny/tsp-prob/dispatch/planner"
	"github.com/P-juuny/tsp-prob/dispatch/store"
)

func decodeJSON(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return err
	}
	return json.Unmarshal(body, v)
}

// handleNext serves the driver's next-stop query for one side.
func (s *Server) handleNext(p *planner.Planner) http.HandlerFunc {
	side := p.Side()

	// The pickup response historically names the count differently.
	remainingKey := "remaining"
	if side.Kind == planner.Pickup {
		remainingKey = "remaining_pickups"
	}

	return func(w http.ResponseWriter, r *http.Request) {
		driverID, ok := s.driverFor(w, r, p)
		if !ok {
			return
		}

		res, err := p.Next(r.Context(), driverID)
		if err != nil {
			s.log.Error("next: computation failed", "side", side.Name, "driver_id", driverID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}

		out := map[string]any{"status": res.Status}
		switch res.Status {
		case planner.StatusWaiting:
			out["start_time"] = fmt.Sprintf("%02d:00", side.StartHour)
			out["remaining_minutes"] = res.WaitMinutes
		case planner.StatusWaitingForOrders:
			out["cutoff_time"] = fmt.Sprintf("%02d:00", side.CutoffHour)
		case planner.StatusAtHub:
			// Status alone is the answer.
		default:
			out["next_destination"] = res.NextDestination
			out["route"] = res.Route
			out["is_last"] = res.IsLast
			out[remainingKey] = res.Remaining
			out["current_location"] = res.CurrentLocation
		}
		writeJSON(w, http.StatusOK, out)
	}
}

type completeRequest struct {
	ParcelID      int64 `json:"parcel_id"`
	ParcelIDCamel int64 `json:"parcelId"`
}

func (req completeRequest) id() int64 {
	if req.ParcelID != 0 {
		return req.ParcelID
	}
	return req.ParcelIDCamel
}

// handleComplete transitions a parcel to the side's completed state. Only the
// assigned driver may complete it.
func (s *Server) handleComplete(p *planner.Planner) http.HandlerFunc {
	side := p.Side()
	return func(w http.ResponseWriter, r *http.Request) {
		driverID, ok := s.driverFor(w, r, p)
		if !ok {
			return
		}

		var req completeRequest
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
			s.log.Error("complete: parcel lookup failed", "parcel_id", parcelID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}

		owner := parcel.PickupDriverID
		if side.Kind == planner.Delivery {
			owner = parcel.DeliveryDriverID
		}
		if owner == nil || *owner != driverID {
			writeJSON(w, http.StatusForbidden, map[string]string{"error": "권한이 없습니다"})
			return
		}

		now := p.Now()
		if side.Kind == planner.Pickup {
			err = s.store.CompletePickup(r.Context(), parcelID, driverID, now)
		} else {
			err = s.store.CompleteDelivery(r.Context(), parcelID, driverID, now)
		}
		if errors.Is(err, store.ErrConflict) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "parcel is not in a completable state"})
			return
		}
		if err != nil {
			s.log.Error("complete: transition failed", "parcel_id", parcelID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}

		s.log.Info("complete: parcel completed", "side", side.Name, "parcel_id", parcelID, "driver_id", driverID)
		writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
	}
}

// handleHubArrived records that the driver is back at the hub. Only valid
// with zero pending stops.
func (s *Server) handleHubArrived(p *planner.Planner) http.HandlerFunc {
	side := p.Side()
	return func(w http.ResponseWriter, r *http.Request) {
		driverID, ok := s.driverFor(w, r, p)
		if !ok {
			return
		}

		pending, err := p.PendingCount(r.Context(), driverID)
		if err != nil {
			s.log.Error("hub-arrived: pending check failed", "driver_id", driverID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
		if pending > 0 {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":     "pending stops remain",
				"remaining": pending,
			})
			return
		}

		s.hubState.Set(driverID)
		s.log.Info("hub-arrived: driver at hub", "side", side.Name, "driver_id", driverID)
		writeJSON(w, http.StatusOK, map[string]any{"status": "success", "at_hub": true})
	}
}
