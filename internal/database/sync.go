package database

import (
	"context"
	"fmt"
	"time"

	"petagenda/internal/config"
)

// SyncRoster applies roster.yaml to the database in one transaction.
// Shops, users, services and pets are upserted, schedules and performer sets
// replaced, and users or services missing from the file are deactivated.
// Bookings are never touched.
func (db *DB) SyncRoster(ctx context.Context, cfg *config.RosterConfig) error {
	if cfg == nil {
		return fmt.Errorf("roster config is nil")
	}

	err := db.WithinTx(ctx, func(ctx context.Context) error {
		now := time.Now()
		q := db.conn(ctx)

		for _, s := range cfg.Shops {
			_, err := q.ExecContext(ctx, `
				INSERT INTO shops (id, owner_id, name, address, phone, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT(id) DO UPDATE SET
					owner_id = excluded.owner_id,
					name = excluded.name,
					address = excluded.address,
					phone = excluded.phone,
					updated_at = excluded.updated_at`,
				s.ID, s.OwnerID, s.Name, s.Address, s.Phone, now, now,
			)
			if err != nil {
				return fmt.Errorf("sync shop %d: %w", s.ID, err)
			}
		}

		seenUsers := make(map[int64]struct{}, len(cfg.Users))
		for _, uc := range cfg.Users {
			u := uc.Model()
			var worksAt interface{}
			if u.WorksAt != 0 {
				worksAt = u.WorksAt
			}
			_, err := q.ExecContext(ctx, `
				INSERT INTO users (id, username, name, phone, role, works_at, is_active, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, 1, ?, ?)
				ON CONFLICT(id) DO UPDATE SET
					username = excluded.username,
					name = excluded.name,
					phone = excluded.phone,
					role = excluded.role,
					works_at = excluded.works_at,
					is_active = 1,
					updated_at = excluded.updated_at`,
				u.ID, u.Username, u.Name, u.Phone, string(u.Role), worksAt, now, now,
			)
			if err != nil {
				return fmt.Errorf("sync user %d: %w", u.ID, err)
			}
			if u.Role.IsStaff() {
				if err := db.ReplaceSchedule(ctx, u.ID, u.Schedule); err != nil {
					return err
				}
			}
			seenUsers[u.ID] = struct{}{}
		}
		if err := db.deactivateMissing(ctx, "users", seenUsers, now); err != nil {
			return err
		}

		seenServices := make(map[int64]struct{}, len(cfg.Services))
		for _, sc := range cfg.Services {
			s := sc.Model()
			var duration interface{}
			if s.DurationMinutes > 0 {
				duration = s.DurationMinutes
			}
			_, err := q.ExecContext(ctx, `
				INSERT INTO services (id, shop_id, name, duration_minutes, buffer_minutes, base_price_cents, is_active)
				VALUES (?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT(id) DO UPDATE SET
					shop_id = excluded.shop_id,
					name = excluded.name,
					duration_minutes = excluded.duration_minutes,
					buffer_minutes = excluded.buffer_minutes,
					base_price_cents = excluded.base_price_cents,
					is_active = excluded.is_active`,
				s.ID, s.ShopID, s.Name, duration, s.BufferMinutes, s.BasePriceCents, s.IsActive,
			)
			if err != nil {
				return fmt.Errorf("sync service %d: %w", s.ID, err)
			}

			if _, err := q.ExecContext(ctx, `DELETE FROM service_performers WHERE service_id = ?`, s.ID); err != nil {
				return fmt.Errorf("clear performers of %d: %w", s.ID, err)
			}
			for _, staffID := range s.PerformerIDs {
				if _, err := q.ExecContext(ctx,
					`INSERT INTO service_performers (service_id, staff_id) VALUES (?, ?)`, s.ID, staffID,
				); err != nil {
					return fmt.Errorf("add performer %d to %d: %w", staffID, s.ID, err)
				}
			}
			seenServices[s.ID] = struct{}{}
		}
		if err := db.deactivateMissing(ctx, "services", seenServices, time.Time{}); err != nil {
			return err
		}

		for _, p := range cfg.Pets {
			_, err := q.ExecContext(ctx, `
				INSERT INTO pets (id, tutor_id, name, species, size)
				VALUES (?, ?, ?, ?, ?)
				ON CONFLICT(id) DO UPDATE SET
					tutor_id = excluded.tutor_id,
					name = excluded.name,
					species = excluded.species,
					size = excluded.size`,
				p.ID, p.TutorID, p.Name, p.Species, p.Size,
			)
			if err != nil {
				return fmt.Errorf("sync pet %d: %w", p.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	db.logger.Info().Str("roster", cfg.String()).Msg("roster synced")
	return nil
}

// deactivateMissing clears is_active on rows of table whose id is not in seen.
// A zero now skips the updated_at column for tables that lack it.
func (db *DB) deactivateMissing(ctx context.Context, table string, seen map[int64]struct{}, now time.Time) error {
	rows, err := db.conn(ctx).QueryContext(ctx, `SELECT id FROM `+table+` WHERE is_active = 1`)
	if err != nil {
		return err
	}
	var stale []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		if _, ok := seen[id]; !ok {
			stale = append(stale, id)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, id := range stale {
		var err error
		if now.IsZero() {
			_, err = db.conn(ctx).ExecContext(ctx, `UPDATE `+table+` SET is_active = 0 WHERE id = ?`, id)
		} else {
			_, err = db.conn(ctx).ExecContext(ctx, `UPDATE `+table+` SET is_active = 0, updated_at = ? WHERE id = ?`, now, id)
		}
		if err != nil {
			return fmt.Errorf("deactivate %s %d: %w", table, id, err)
		}
		db.logger.Info().Str("table", table).Int64("id", id).Msg("deactivated, missing from roster")
	}
	return nil
}
