package planner

import (
	"context"
	"time"

	"github.com/P-juuny/tsp-prob/dispatch/store"
)

// Kind selects which half of the parcel lifecycle a planner operates on.
type Kind int

const (
	Pickup Kind = iota
	Delivery
)

// Side parameterizes the shared dispatch algorithm. Pickup and delivery are
// the two instantiations; they differ only in these values and in which store
// queries they touch.
type Side struct {
	Kind          Kind
	Name          string
	PendingStatus store.Status

	// StartHour is the local hour before which /next answers "waiting".
	StartHour int

	// CutoffHour is the intake cutoff; 0 means the side has none. With zero
	// pending before the cutoff the driver stays in the field.
	CutoffHour int

	DriverMin, DriverMax int
}

var (
	PickupSide = Side{
		Kind:          Pickup,
		Name:          "pickup",
		PendingStatus: store.StatusPickupPending,
		StartHour:     7,
		CutoffHour:    12,
		DriverMin:     1,
		DriverMax:     5,
	}

	DeliverySide = Side{
		Kind:          Delivery,
		Name:          "delivery",
		PendingStatus: store.StatusDeliveryPending,
		StartHour:     15,
		DriverMin:     6,
		DriverMax:     10,
	}
)

// AllowsDriver reports whether the driver id belongs to this side.
func (s Side) AllowsDriver(id int) bool {
	return id >= s.DriverMin && id <= s.DriverMax
}

func (s Side) pending(ctx context.Context, st store.Store, driverID int, today time.Time) ([]store.Parcel, error) {
	if s.Kind == Pickup {
		return st.PickupPending(ctx, driverID, today)
	}
	return st.DeliveryPending(ctx, driverID, today)
}

func (s Side) lastCompleted(ctx context.Context, st store.Store, driverID int, today time.Time) (*store.Parcel, error) {
	if s.Kind == Pickup {
		return st.LastPickupCompleted(ctx, driverID, today)
	}
	return st.LastDeliveryCompleted(ctx, driverID, today)
}

func (s Side) setNextTarget(ctx context.Context, st store.Store, driverID int, id int64) error {
	if s.Kind == Pickup {
		return st.SetNextPickupTarget(ctx, driverID, id)
	}
	return st.SetNextDeliveryTarget(ctx, driverID, id)
}
