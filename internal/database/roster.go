package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"petagenda/internal/model"
)

// GetUser returns an active user with their weekly schedule.
func (db *DB) GetUser(ctx context.Context, id int64) (*model.User, error) {
	var (
		u           model.User
		name, phone sql.NullString
		worksAt     sql.NullInt64
		role        string
	)
	err := db.conn(ctx).QueryRowContext(ctx, `
		SELECT id, username, name, phone, role, works_at
		FROM users WHERE id = ? AND is_active = 1`, id,
	).Scan(&u.ID, &u.Username, &name, &phone, &role, &worksAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user %d: %w", id, err)
	}
	u.Name = name.String
	u.Phone = phone.String
	u.Role = model.Role(role)
	u.WorksAt = worksAt.Int64

	schedules, err := db.loadSchedules(ctx, []int64{u.ID})
	if err != nil {
		return nil, err
	}
	u.Schedule = schedules[u.ID]
	return &u, nil
}

// GetShop returns a shop by id.
func (db *DB) GetShop(ctx context.Context, id int64) (*model.Shop, error) {
	var (
		s              model.Shop
		address, phone sql.NullString
	)
	err := db.conn(ctx).QueryRowContext(ctx,
		`SELECT id, owner_id, name, address, phone FROM shops WHERE id = ?`, id,
	).Scan(&s.ID, &s.OwnerID, &s.Name, &address, &phone)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("shop %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get shop %d: %w", id, err)
	}
	s.Address = address.String
	s.Phone = phone.String
	return &s, nil
}

// ListShops returns every shop ordered by id.
func (db *DB) ListShops(ctx context.Context) ([]model.Shop, error) {
	rows, err := db.conn(ctx).QueryContext(ctx, `SELECT id, owner_id, name, address, phone FROM shops ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list shops: %w", err)
	}
	defer rows.Close()

	var shops []model.Shop
	for rows.Next() {
		var (
			s              model.Shop
			address, phone sql.NullString
		)
		if err := rows.Scan(&s.ID, &s.OwnerID, &s.Name, &address, &phone); err != nil {
			return nil, err
		}
		s.Address = address.String
		s.Phone = phone.String
		shops = append(shops, s)
	}
	return shops, rows.Err()
}

// GetService returns a service with its performer ids in ascending order.
func (db *DB) GetService(ctx context.Context, id int64) (*model.Service, error) {
	var (
		s        model.Service
		duration sql.NullInt64
	)
	err := db.conn(ctx).QueryRowContext(ctx, `
		SELECT id, shop_id, name, duration_minutes, buffer_minutes, base_price_cents, is_active
		FROM services WHERE id = ?`, id,
	).Scan(&s.ID, &s.ShopID, &s.Name, &duration, &s.BufferMinutes, &s.BasePriceCents, &s.IsActive)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("service %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get service %d: %w", id, err)
	}
	s.DurationMinutes = int(duration.Int64)

	rows, err := db.conn(ctx).QueryContext(ctx, `
		SELECT sp.staff_id FROM service_performers sp
		JOIN users u ON u.id = sp.staff_id
		WHERE sp.service_id = ? AND u.is_active = 1
		ORDER BY sp.staff_id`, id)
	if err != nil {
		return nil, fmt.Errorf("service %d performers: %w", id, err)
	}
	defer rows.Close()
	for rows.Next() {
		var staffID int64
		if err := rows.Scan(&staffID); err != nil {
			return nil, err
		}
		s.PerformerIDs = append(s.PerformerIDs, staffID)
	}
	return &s, rows.Err()
}

// GetPet returns a pet by id.
func (db *DB) GetPet(ctx context.Context, id int64) (*model.Pet, error) {
	var (
		p             model.Pet
		species, size sql.NullString
	)
	err := db.conn(ctx).QueryRowContext(ctx,
		`SELECT id, tutor_id, name, species, size FROM pets WHERE id = ?`, id,
	).Scan(&p.ID, &p.TutorID, &p.Name, &species, &size)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("pet %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get pet %d: %w", id, err)
	}
	p.Species = species.String
	p.Size = size.String
	return &p, nil
}

// ListRoster returns the service's active performers, ascending by id, with schedules.
func (db *DB) ListRoster(ctx context.Context, svc *model.Service) ([]model.User, error) {
	if svc == nil || len(svc.PerformerIDs) == 0 {
		return []model.User{}, nil
	}

	rows, err := db.conn(ctx).QueryContext(ctx, `
		SELECT id, username, name, phone, role, works_at
		FROM users
		WHERE id IN (`+placeholders(len(svc.PerformerIDs))+`) AND is_active = 1
		ORDER BY id`, int64Args(svc.PerformerIDs)...)
	if err != nil {
		return nil, fmt.Errorf("list roster: %w", err)
	}
	defer rows.Close()

	roster := []model.User{}
	var ids []int64
	for rows.Next() {
		var (
			u           model.User
			name, phone sql.NullString
			worksAt     sql.NullInt64
			role        string
		)
		if err := rows.Scan(&u.ID, &u.Username, &name, &phone, &role, &worksAt); err != nil {
			return nil, err
		}
		u.Name = name.String
		u.Phone = phone.String
		u.Role = model.Role(role)
		u.WorksAt = worksAt.Int64
		roster = append(roster, u)
		ids = append(ids, u.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	schedules, err := db.loadSchedules(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range roster {
		roster[i].Schedule = schedules[roster[i].ID]
	}
	return roster, nil
}

func (db *DB) loadSchedules(ctx context.Context, staffIDs []int64) (map[int64]model.WorkSchedule, error) {
	out := make(map[int64]model.WorkSchedule, len(staffIDs))
	if len(staffIDs) == 0 {
		return out, nil
	}

	rows, err := db.conn(ctx).QueryContext(ctx, `
		SELECT staff_id, day_of_week, start_time, break_start, break_end, end_time
		FROM staff_schedules
		WHERE staff_id IN (`+placeholders(len(staffIDs))+`)`, int64Args(staffIDs)...)
	if err != nil {
		return nil, fmt.Errorf("load schedules: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			staffID                  int64
			day                      int
			start, bStart, bEnd, end string
		)
		if err := rows.Scan(&staffID, &day, &start, &bStart, &bEnd, &end); err != nil {
			return nil, err
		}
		ds, err := parseDaySchedule(start, bStart, bEnd, end)
		if err != nil {
			return nil, fmt.Errorf("staff %d day %d: %w", staffID, day, err)
		}
		if out[staffID] == nil {
			out[staffID] = model.WorkSchedule{}
		}
		out[staffID][time.Weekday(day)] = ds
	}
	return out, rows.Err()
}

func parseDaySchedule(start, bStart, bEnd, end string) (model.DaySchedule, error) {
	var (
		ds  model.DaySchedule
		err error
	)
	for _, f := range []struct {
		dst *model.TimeOfDay
		src string
	}{
		{&ds.Start, start}, {&ds.BreakStart, bStart}, {&ds.BreakEnd, bEnd}, {&ds.End, end},
	} {
		if *f.dst, err = model.ParseTimeOfDay(f.src); err != nil {
			return ds, err
		}
	}
	return ds, nil
}

// ReplaceSchedule stores ws as the staff member's full week; days missing from
// ws become days off.
func (db *DB) ReplaceSchedule(ctx context.Context, staffID int64, ws model.WorkSchedule) error {
	return db.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := db.conn(ctx).ExecContext(ctx, `DELETE FROM staff_schedules WHERE staff_id = ?`, staffID); err != nil {
			return fmt.Errorf("clear schedule of %d: %w", staffID, err)
		}
		now := time.Now()
		for day, ds := range ws {
			if err := ds.Validate(); err != nil {
				return fmt.Errorf("staff %d %s: %w", staffID, model.WeekdayName(day), err)
			}
			_, err := db.conn(ctx).ExecContext(ctx, `
				INSERT INTO staff_schedules (staff_id, day_of_week, start_time, break_start, break_end, end_time, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				staffID, int(day), ds.Start.String(), ds.BreakStart.String(), ds.BreakEnd.String(), ds.End.String(), now,
			)
			if err != nil {
				return fmt.Errorf("insert schedule of %d: %w", staffID, err)
			}
		}
		return nil
	})
}
