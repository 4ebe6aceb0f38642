// Package store is the parcel persistence layer. Every state transition is a
// single guarded UPDATE; the WHERE clause is the concurrency primitive, and a
// transition that matches zero rows is reported as ErrConflict with no
// partial mutation.
package store

import (
	"context"
	"errors"
	"time"
)

// Parcel lifecycle states.
type Status string

const (
	StatusPickupPending     Status = "PICKUP_PENDING"
	StatusPickupCompleted   Status = "PICKUP_COMPLETED"
	StatusDeliveryPending   Status = "DELIVERY_PENDING"
	StatusDeliveryCompleted Status = "DELIVERY_COMPLETED"
)

type Parcel struct {
	ID                  int64
	OwnerID             int64
	ProductName         string
	Size                string
	RecipientName       string
	RecipientPhone      string
	RecipientAddr       string
	DetailAddress       string
	Status              Status
	PickupDriverID      *int
	DeliveryDriverID    *int
	PickupScheduledDate *time.Time
	PickupCompletedAt   *time.Time
	DeliveryCompletedAt *time.Time
	CreatedAt           time.Time
}

// Progress is the aggregate pickup standing for one day.
type Progress struct {
	Remaining      int
	CompletedCount int
}

var (
	// ErrNotFound covers unknown and soft-deleted parcel ids.
	ErrNotFound = errors.New("parcel not found")

	// ErrConflict means a guarded transition matched zero rows: the parcel
	// was not in the expected state.
	ErrConflict = errors.New("parcel state conflict")
)

// Store is the parcel store. `today` arguments are local midnight of the
// operating day; date windows are [today, today+24h).
type Store interface {
	GetParcel(ctx context.Context, id int64) (*Parcel, error)

	// Pickup side.
	PickupPending(ctx context.Context, driverID int, today time.Time) ([]Parcel, error)
	LastPickupCompleted(ctx context.Context, driverID int, today time.Time) (*Parcel, error)
	AssignPickupDriver(ctx context.Context, id int64, driverID int, scheduledDate time.Time) error
	CompletePickup(ctx context.Context, id int64, driverID int, completedAt time.Time) error
	PickupProgress(ctx context.Context, today time.Time) (Progress, error)
	SetNextPickupTarget(ctx context.Context, driverID int, id int64) error

	// Delivery side.
	DeliveryPending(ctx context.Context, driverID int, today time.Time) ([]Parcel, error)
	LastDeliveryCompleted(ctx context.Context, driverID int, today time.Time) (*Parcel, error)
	ImportDeliveries(ctx context.Context, today time.Time) ([]Parcel, error)
	UnassignedDeliveries(ctx context.Context, today time.Time) ([]Parcel, error)
	AssignDeliveryDriver(ctx context.Context, id int64, driverID int) error
	CompleteDelivery(ctx context.Context, id int64, driverID int, completedAt time.Time) error
	SetNextDeliveryTarget(ctx context.Context, driverID int, id int64) error
}
