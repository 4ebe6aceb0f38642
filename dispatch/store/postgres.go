package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const queryTimeout = 5 * time.Second

// Postgres implements Store on a pgx pool. Column names are the quoted
// camelCase names of the shared parcel schema.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

const parcelColumns = `id, "ownerId", "productName", size, "recipientName", "recipientPhone",
	"recipientAddr", "detailAddress", status, "pickupDriverId", "deliveryDriverId",
	"pickupScheduledDate", "pickupCompletedAt", "deliveryCompletedAt", "createdAt"`

func scanParcel(row pgx.Row) (*Parcel, error) {
	var p Parcel
	err := row.Scan(
		&p.ID, &p.OwnerID, &p.ProductName, &p.Size, &p.RecipientName, &p.RecipientPhone,
		&p.RecipientAddr, &p.DetailAddress, &p.Status, &p.PickupDriverID, &p.DeliveryDriverID,
		&p.PickupScheduledDate, &p.PickupCompletedAt, &p.DeliveryCompletedAt, &p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Postgres) GetParcel(ctx context.Context, id int64) (*Parcel, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `SELECT ` + parcelColumns + ` FROM parcels WHERE id = $1 AND NOT "isDeleted"`
	p, err := scanParcel(s.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get parcel %d: %w", id, err)
	}
	return p, nil
}

func (s *Postgres) queryParcels(ctx context.Context, query string, args ...any) ([]Parcel, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var parcels []Parcel
	for rows.Next() {
		p, err := scanParcel(rows)
		if err != nil {
			return nil, err
		}
		parcels = append(parcels, *p)
	}
	return parcels, rows.Err()
}

func (s *Postgres) PickupPending(ctx context.Context, driverID int, today time.Time) ([]Parcel, error) {
	query := `SELECT ` + parcelColumns + ` FROM parcels
		WHERE "pickupDriverId" = $1 AND status = 'PICKUP_PENDING'
		  AND "pickupScheduledDate" <= $2 AND NOT "isDeleted"
		ORDER BY "createdAt"`
	parcels, err := s.queryParcels(ctx, query, driverID, today)
	if err != nil {
		return nil, fmt.Errorf("pending pickups for driver %d: %w", driverID, err)
	}
	return parcels, nil
}

func (s *Postgres) LastPickupCompleted(ctx context.Context, driverID int, today time.Time) (*Parcel, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `SELECT ` + parcelColumns + ` FROM parcels
		WHERE "pickupDriverId" = $1
		  AND "pickupCompletedAt" >= $2 AND "pickupCompletedAt" < $2 + interval '1 day'
		  AND NOT "isDeleted"
		ORDER BY "pickupCompletedAt" DESC LIMIT 1`
	p, err := scanParcel(s.pool.QueryRow(ctx, query, driverID, today))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("last completed pickup for driver %d: %w", driverID, err)
	}
	return p, nil
}

// exec runs one guarded mutation; zero matched rows is ErrConflict.
func (s *Postgres) exec(ctx context.Context, query string, args ...any) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

func (s *Postgres) AssignPickupDriver(ctx context.Context, id int64, driverID int, scheduledDate time.Time) error {
	query := `UPDATE parcels SET "pickupDriverId" = $2, "pickupScheduledDate" = $3
		WHERE id = $1 AND "pickupDriverId" IS NULL AND status = 'PICKUP_PENDING' AND NOT "isDeleted"`
	if err := s.exec(ctx, query, id, driverID, scheduledDate); err != nil {
		if errors.Is(err, ErrConflict) {
			return err
		}
		return fmt.Errorf("assign pickup driver on parcel %d: %w", id, err)
	}
	return nil
}

func (s *Postgres) CompletePickup(ctx context.Context, id int64, driverID int, completedAt time.Time) error {
	query := `UPDATE parcels SET status = 'PICKUP_COMPLETED', "pickupCompletedAt" = $3, "isNextPickupTarget" = false
		WHERE id = $1 AND "pickupDriverId" = $2 AND status = 'PICKUP_PENDING' AND NOT "isDeleted"`
	if err := s.exec(ctx, query, id, driverID, completedAt); err != nil {
		if errors.Is(err, ErrConflict) {
			return err
		}
		return fmt.Errorf("complete pickup %d: %w", id, err)
	}
	return nil
}

func (s *Postgres) PickupProgress(ctx context.Context, today time.Time) (Progress, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `SELECT
		count(*) FILTER (WHERE status = 'PICKUP_PENDING' AND "pickupScheduledDate" <= $1),
		count(*) FILTER (WHERE "pickupCompletedAt" >= $1 AND "pickupCompletedAt" < $1 + interval '1 day')
		FROM parcels WHERE "pickupDriverId" IS NOT NULL AND NOT "isDeleted"`
	var p Progress
	if err := s.pool.QueryRow(ctx, query, today).Scan(&p.Remaining, &p.CompletedCount); err != nil {
		return Progress{}, fmt.Errorf("pickup progress: %w", err)
	}
	return p, nil
}

// SetNextPickupTarget marks one parcel as the driver's next stop and clears
// the flag on the driver's other pending parcels, in one statement.
func (s *Postgres) SetNextPickupTarget(ctx context.Context, driverID int, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `UPDATE parcels SET "isNextPickupTarget" = (id = $2)
		WHERE "pickupDriverId" = $1 AND status = 'PICKUP_PENDING' AND NOT "isDeleted"`
	if _, err := s.pool.Exec(ctx, query, driverID, id); err != nil {
		return fmt.Errorf("set next pickup target: %w", err)
	}
	return nil
}

func (s *Postgres) DeliveryPending(ctx context.Context, driverID int, today time.Time) ([]Parcel, error) {
	query := `SELECT ` + parcelColumns + ` FROM parcels
		WHERE "deliveryDriverId" = $1 AND status = 'DELIVERY_PENDING' AND NOT "isDeleted"
		ORDER BY "createdAt"`
	parcels, err := s.queryParcels(ctx, query, driverID)
	if err != nil {
		return nil, fmt.Errorf("pending deliveries for driver %d: %w", driverID, err)
	}
	return parcels, nil
}

func (s *Postgres) LastDeliveryCompleted(ctx context.Context, driverID int, today time.Time) (*Parcel, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `SELECT ` + parcelColumns + ` FROM parcels
		WHERE "deliveryDriverId" = $1
		  AND "deliveryCompletedAt" >= $2 AND "deliveryCompletedAt" < $2 + interval '1 day'
		  AND NOT "isDeleted"
		ORDER BY "deliveryCompletedAt" DESC LIMIT 1`
	p, err := scanParcel(s.pool.QueryRow(ctx, query, driverID, today))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("last completed delivery for driver %d: %w", driverID, err)
	}
	return p, nil
}

// ImportDeliveries transitions today's completed pickups without a delivery
// driver to DELIVERY_PENDING, returning the affected parcels for per-zone
// accounting.
func (s *Postgres) ImportDeliveries(ctx context.Context, today time.Time) ([]Parcel, error) {
	query := `UPDATE parcels SET status = 'DELIVERY_PENDING'
		WHERE status = 'PICKUP_COMPLETED' AND "deliveryDriverId" IS NULL
		  AND "pickupCompletedAt" >= $1 AND "pickupCompletedAt" < $1 + interval '1 day'
		  AND NOT "isDeleted"
		RETURNING ` + parcelColumns
	parcels, err := s.queryParcels(ctx, query, today)
	if err != nil {
		return nil, fmt.Errorf("import deliveries: %w", err)
	}
	return parcels, nil
}

func (s *Postgres) UnassignedDeliveries(ctx context.Context, today time.Time) ([]Parcel, error) {
	query := `SELECT ` + parcelColumns + ` FROM parcels
		WHERE status = 'DELIVERY_PENDING' AND "deliveryDriverId" IS NULL
		  AND "pickupCompletedAt" >= $1 AND "pickupCompletedAt" < $1 + interval '1 day'
		  AND NOT "isDeleted"
		ORDER BY "createdAt"`
	parcels, err := s.queryParcels(ctx, query, today)
	if err != nil {
		return nil, fmt.Errorf("unassigned deliveries: %w", err)
	}
	return parcels, nil
}

func (s *Postgres) AssignDeliveryDriver(ctx context.Context, id int64, driverID int) error {
	query := `UPDATE parcels SET "deliveryDriverId" = $2
		WHERE id = $1 AND status = 'DELIVERY_PENDING' AND "deliveryDriverId" IS NULL AND NOT "isDeleted"`
	if err := s.exec(ctx, query, id, driverID); err != nil {
		if errors.Is(err, ErrConflict) {
			return err
		}
		return fmt.Errorf("assign delivery driver on parcel %d: %w", id, err)
	}
	return nil
}

func (s *Postgres) CompleteDelivery(ctx context.Context, id int64, driverID int, completedAt time.Time) error {
	query := `UPDATE parcels SET status = 'DELIVERY_COMPLETED', "deliveryCompletedAt" = $3, "isNextDeliveryTarget" = false
		WHERE id = $1 AND "deliveryDriverId" = $2 AND status = 'DELIVERY_PENDING' AND NOT "isDeleted"`
	if err := s.exec(ctx, query, id, driverID, completedAt); err != nil {
		if errors.Is(err, ErrConflict) {
			return err
		}
		return fmt.Errorf("complete delivery %d: %w", id, err)
	}
	return nil
}

func (s *Postgres) SetNextDeliveryTarget(ctx context.Context, driverID int, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `UPDATE parcels SET "isNextDeliveryTarget" = (id = $2)
		WHERE "deliveryDriverId" = $1 AND status = 'DELIVERY_PENDING' AND NOT "isDeleted"`
	if _, err := s.pool.Exec(ctx, query, driverID, id); err != nil {
		return fmt.Errorf("set next delivery target: %w", err)
	}
	return nil
}
