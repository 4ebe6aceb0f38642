package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/P-juuny/tsp-prob/dispatch/store"
	"github.com/P-juuny/tsp-prob/dispatch/zone"
	"github.com/P-juuny/tsp-prob/pkg/seoul"
)

// handleAllCompleted reports aggregate pickup progress for the day. When the
// day's pickups are done and at least one completed, it synchronously fires
// the delivery cutover.
func (s *Server) handleAllCompleted(w http.ResponseWriter, r *http.Request) {
	today := s.pickup.Today()
	progress, err := s.store.PickupProgress(r.Context(), today)
	if err != nil {
		s.log.Error("all-completed: progress query failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	completed := progress.Remaining == 0
	out := map[string]any{
		"completed":       completed,
		"remaining":       progress.Remaining,
		"completed_count": progress.CompletedCount,
	}

	if completed && progress.CompletedCount > 0 && s.trigger != nil {
		importStatus, err := s.trigger.Import(r.Context())
		if err != nil {
			s.log.Error("all-completed: delivery import failed", "error", err)
		}
		assignStatus, err := s.trigger.Assign(r.Context())
		if err != nil {
			s.log.Error("all-completed: delivery assign failed", "error", err)
		}
		out["import_status"] = importStatus
		out["assign_status"] = assignStatus
		s.log.Info("all-completed: delivery cutover fired",
			"completed_count", progress.CompletedCount,
			"import_status", importStatus,
			"assign_status", assignStatus,
		)
	}
	writeJSON(w, http.StatusOK, out)
}

// handleImport transitions today's completed pickups to DELIVERY_PENDING.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	converted, byZone, err := s.runImport(r.Context())
	if err != nil {
		s.log.Error("import: failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "success",
		"converted": converted,
		"by_zone":   byZone,
	})
}

func (s *Server) runImport(ctx context.Context) (int, map[string]int, error) {
	today := s.delivery.Today()
	parcels, err := s.store.ImportDeliveries(ctx, today)
	if err != nil {
		return 0, nil, err
	}

	byZone := make(map[string]int)
	for _, p := range parcels {
		if district := seoul.ExtractDistrict(p.RecipientAddr); district != "" {
			if z, ok := zone.ForDistrict(district); ok {
				byZone[z]++
			}
		}
	}
	s.log.Info("import: pickups converted to deliveries", "converted", len(parcels))
	return len(parcels), byZone, nil
}

type zoneAssignment struct {
	DriverID int `json:"driver_id"`
	Count    int `json:"count"`
}

// handleAssign assigns unassigned DELIVERY_PENDING parcels to the delivery
// driver of their district's zone.
func (s *Server) handleAssign(w http.ResponseWriter, r *http.Request) {
	assignments, err := s.runAssign(r.Context())
	if err != nil {
		s.log.Error("assign: failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "success",
		"assignments": assignments,
	})
}

func (s *Server) runAssign(ctx context.Context) (map[string]zoneAssignment, error) {
	today := s.delivery.Today()
	parcels, err := s.store.UnassignedDeliveries(ctx, today)
	if err != nil {
		return nil, err
	}

	assignments := make(map[string]zoneAssignment)
	for _, p := range parcels {
		district := s.resolveDistrict(ctx, p.RecipientAddr)
		if district == "" {
			s.log.Warn("assign: no district for parcel", "parcel_id", p.ID, "address", p.RecipientAddr)
			continue
		}
		driverID, z, ok := zone.DeliveryDriver(district)
		if !ok {
			s.log.Warn("assign: district outside service area", "parcel_id", p.ID, "district", district)
			continue
		}
		if err := s.store.AssignDeliveryDriver(ctx, p.ID, driverID); err != nil {
			if errors.Is(err, store.ErrConflict) {
				continue
			}
			return nil, err
		}
		a := assignments[z]
		a.DriverID = driverID
		a.Count++
		assignments[z] = a
	}
	s.log.Info("assign: deliveries assigned", "zones", len(assignments))
	return assignments, nil
}

// InProcessTrigger fires the cutover directly when one binary serves both
// sides.
type InProcessTrigger struct {
	Server *Server
}

func (t *InProcessTrigger) Import(ctx context.Context) (int, error) {
	if _, _, err := t.Server.runImport(ctx); err != nil {
		return http.StatusInternalServerError, err
	}
	return http.StatusOK, nil
}

func (t *InProcessTrigger) Assign(ctx context.Context) (int, error) {
	if _, err := t.Server.runAssign(ctx); err != nil {
		return http.StatusInternalServerError, err
	}
	return http.StatusOK, nil
}
