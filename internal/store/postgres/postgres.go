// Package postgres implements store.Store over pgx/v5: plain SQL, no
// ORM, with not-found errors normalized via db.WrapNotFound around
// pgx.ErrNoRows.
package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/tablekeep/reservation-engine/internal/db"
	"github.com/tablekeep/reservation-engine/internal/internaltypes"
	"github.com/tablekeep/reservation-engine/internal/model"
	"github.com/tablekeep/reservation-engine/internal/store"
)

type Store struct {
	db *db.DB
}

func New(d *db.DB) *Store {
	return &Store{db: d}
}

func (s *Store) GetRestaurant(ctx context.Context, id string) (model.Restaurant, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, timezone, shifts, default_duration_minutes, duration_rules,
		       min_advance_minutes, max_advance_days, large_group_threshold,
		       pending_hold_ttl_minutes, max_guests_per_slot
		FROM restaurants WHERE id=$1`, id)

	var (
		r                                model.Restaurant
		shiftsJSON, rulesJSON            []byte
		minAdv, maxAdv                   *int
		largeGroup, pendingTTL, maxGuest *int
	)
	if err := row.Scan(&r.ID, &r.Timezone, &shiftsJSON, &r.DefaultDurationMin, &rulesJSON,
		&minAdv, &maxAdv, &largeGroup, &pendingTTL, &maxGuest); err != nil {
		return model.Restaurant{}, db.WrapNotFound(err)
	}
	if err := json.Unmarshal(shiftsJSON, &r.Shifts); err != nil {
		return model.Restaurant{}, internaltypes.Internal("decode shifts", err)
	}
	if err := json.Unmarshal(rulesJSON, &r.DurationRules); err != nil {
		return model.Restaurant{}, internaltypes.Internal("decode duration rules", err)
	}
	if minAdv != nil || maxAdv != nil {
		p := model.AdvanceBookingPolicy{}
		if minAdv != nil {
			p.MinAdvanceMinutes = *minAdv
		}
		if maxAdv != nil {
			p.MaxAdvanceDays = *maxAdv
		}
		r.AdvanceBooking = &p
	}
	if largeGroup != nil {
		r.LargeGroupThreshold = *largeGroup
	}
	if pendingTTL != nil {
		r.PendingHoldTTLMin = *pendingTTL
	}
	if maxGuest != nil {
		r.MaxGuestsPerSlot = *maxGuest
	}
	return r, nil
}

func (s *Store) GetSector(ctx context.Context, id string) (model.Sector, error) {
	row := s.db.QueryRow(ctx, `SELECT id, restaurant_id, name FROM sectors WHERE id=$1`, id)
	var sec model.Sector
	if err := row.Scan(&sec.ID, &sec.RestaurantID, &sec.Name); err != nil {
		return model.Sector{}, db.WrapNotFound(err)
	}
	return sec, nil
}

func (s *Store) TablesBySector(ctx context.Context, sectorID string) ([]model.Table, error) {
	rows, err := s.db.Query(ctx, `SELECT id, sector_id, min_size, max_size FROM tables WHERE sector_id=$1 ORDER BY id`, sectorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Table
	for rows.Next() {
		var t model.Table
		if err := rows.Scan(&t.ID, &t.SectorID, &t.MinSize, &t.MaxSize); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) TableByID(ctx context.Context, id string) (model.Table, error) {
	row := s.db.QueryRow(ctx, `SELECT id, sector_id, min_size, max_size FROM tables WHERE id=$1`, id)
	var t model.Table
	if err := row.Scan(&t.ID, &t.SectorID, &t.MinSize, &t.MaxSize); err != nil {
		return model.Table{}, db.WrapNotFound(err)
	}
	return t, nil
}

const reservationCols = `id, restaurant_id, sector_id, table_ids, party_size, start_at, end_at, status,
	expires_at, customer_name, customer_phone, customer_email, notes, created_at, updated_at`

func scanReservation(row db.Row) (model.Reservation, error) {
	var r model.Reservation
	if err := row.Scan(&r.ID, &r.RestaurantID, &r.SectorID, &r.TableIDs, &r.PartySize, &r.Start, &r.End, &r.Status,
		&r.ExpiresAt, &r.Customer.Name, &r.Customer.Phone, &r.Customer.Email, &r.Notes, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return model.Reservation{}, err
	}
	return r, nil
}

func scanReservationRows(rows db.Rows) (model.Reservation, error) {
	var r model.Reservation
	if err := rows.Scan(&r.ID, &r.RestaurantID, &r.SectorID, &r.TableIDs, &r.PartySize, &r.Start, &r.End, &r.Status,
		&r.ExpiresAt, &r.Customer.Name, &r.Customer.Phone, &r.Customer.Email, &r.Notes, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return model.Reservation{}, err
	}
	return r, nil
}

func (s *Store) ReservationsByDay(ctx context.Context, restaurantID string, date time.Time, tz string, sectorID *string) ([]model.Reservation, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc = time.UTC
	}
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, loc).UTC()
	dayEnd := dayStart.AddDate(0, 0, 1)

	query := `SELECT ` + reservationCols + ` FROM reservations
		WHERE restaurant_id=$1 AND status IN ('CONFIRMED','PENDING') AND start_at >= $2 AND start_at < $3`
	args := []any{restaurantID, dayStart, dayEnd}
	if sectorID != nil {
		query += ` AND sector_id=$4`
		args = append(args, *sectorID)
	}
	query += ` ORDER BY start_at ASC`

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Reservation
	for rows.Next() {
		r, err := scanReservationRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) Overlapping(ctx context.Context, tableIDs []string, start, end time.Time, excludeReservationID *string) ([]model.Reservation, error) {
	query := `SELECT ` + reservationCols + ` FROM reservations
		WHERE status IN ('CONFIRMED','PENDING') AND table_ids && $1 AND start_at < $2 AND end_at > $3`
	args := []any{tableIDs, end, start}
	if excludeReservationID != nil {
		query += ` AND id <> $4`
		args = append(args, *excludeReservationID)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Reservation
	for rows.Next() {
		r, err := scanReservationRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) OverlappingRestaurant(ctx context.Context, restaurantID string, start, end time.Time, excludeReservationID *string) ([]model.Reservation, error) {
	query := `SELECT ` + reservationCols + ` FROM reservations
		WHERE restaurant_id=$1 AND status IN ('CONFIRMED','PENDING') AND start_at < $2 AND end_at > $3`
	args := []any{restaurantID, end, start}
	if excludeReservationID != nil {
		query += ` AND id <> $4`
		args = append(args, *excludeReservationID)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Reservation
	for rows.Next() {
		r, err := scanReservationRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) CreateReservation(ctx context.Context, r model.Reservation) error {
	return s.db.Exec(ctx, `
		INSERT INTO reservations (id, restaurant_id, sector_id, table_ids, party_size, start_at, end_at, status,
			expires_at, customer_name, customer_phone, customer_email, notes, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		r.ID, r.RestaurantID, r.SectorID, r.TableIDs, r.PartySize, r.Start, r.End, r.Status,
		r.ExpiresAt, r.Customer.Name, r.Customer.Phone, r.Customer.Email, r.Notes, r.CreatedAt, r.UpdatedAt)
}

func (s *Store) UpdateReservation(ctx context.Context, id string, patch store.ReservationPatch) (model.Reservation, error) {
	current, err := s.GetReservation(ctx, id)
	if err != nil {
		return model.Reservation{}, err
	}
	if patch.SectorID != nil {
		current.SectorID = *patch.SectorID
	}
	if patch.TableIDs != nil {
		current.TableIDs = patch.TableIDs
	}
	if patch.PartySize != nil {
		current.PartySize = *patch.PartySize
	}
	if patch.Start != nil {
		current.Start = *patch.Start
	}
	if patch.End != nil {
		current.End = *patch.End
	}
	if patch.Status != nil {
		current.Status = *patch.Status
	}
	if patch.ExpiresAt != nil {
		current.ExpiresAt = *patch.ExpiresAt
	}
	if patch.Customer != nil {
		current.Customer = *patch.Customer
	}
	if patch.Notes != nil {
		current.Notes = *patch.Notes
	}
	current.UpdatedAt = patch.UpdatedAt

	err = s.db.Exec(ctx, `
		UPDATE reservations SET sector_id=$2, table_ids=$3, party_size=$4, start_at=$5, end_at=$6, status=$7,
			expires_at=$8, customer_name=$9, customer_phone=$10, customer_email=$11, notes=$12, updated_at=$13
		WHERE id=$1`,
		current.ID, current.SectorID, current.TableIDs, current.PartySize, current.Start, current.End, current.Status,
		current.ExpiresAt, current.Customer.Name, current.Customer.Phone, current.Customer.Email, current.Notes, current.UpdatedAt)
	if err != nil {
		return model.Reservation{}, err
	}
	return current, nil
}

func (s *Store) CancelReservation(ctx context.Context, id string, updatedAt time.Time) error {
	return s.db.Exec(ctx, `UPDATE reservations SET status='CANCELLED', expires_at=NULL, updated_at=$2 WHERE id=$1 AND status <> 'CANCELLED'`, id, updatedAt)
}

func (s *Store) GetReservation(ctx context.Context, id string) (model.Reservation, error) {
	row := s.db.QueryRow(ctx, `SELECT `+reservationCols+` FROM reservations WHERE id=$1`, id)
	r, err := scanReservation(row)
	if err != nil {
		return model.Reservation{}, db.WrapNotFound(err)
	}
	return r, nil
}

func (s *Store) PendingReservationsAll(ctx context.Context) ([]model.Reservation, error) {
	rows, err := s.db.Query(ctx, `SELECT `+reservationCols+` FROM reservations WHERE status='PENDING'`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Reservation
	for rows.Next() {
		r, err := scanReservationRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) GetIdempotency(ctx context.Context, key string) (model.IdempotencyRecord, error) {
	row := s.db.QueryRow(ctx, `SELECT key, payload, created_at FROM idempotency_keys WHERE key=$1`, key)
	var rec model.IdempotencyRecord
	if err := row.Scan(&rec.Key, &rec.Payload, &rec.CreatedAt); err != nil {
		return model.IdempotencyRecord{}, db.WrapNotFound(err)
	}
	return rec, nil
}

func (s *Store) PutIdempotency(ctx context.Context, key string, payload []byte, now time.Time) error {
	return s.db.Exec(ctx, `
		INSERT INTO idempotency_keys (key, payload, created_at) VALUES ($1,$2,$3)
		ON CONFLICT (key) DO NOTHING`, key, payload, now)
}
