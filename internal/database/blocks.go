package database

import (
	"context"
	"fmt"
	"time"

	"petagenda/internal/model"
)

// CreateTimeBlock inserts a block and fills its ID.
func (db *DB) CreateTimeBlock(ctx context.Context, tb *model.TimeBlock) error {
	if tb == nil {
		return fmt.Errorf("time block is nil")
	}

	now := time.Now()
	res, err := db.conn(ctx).ExecContext(ctx, `
		INSERT INTO time_blocks (shop_id, staff_id, start_time, end_time, reason, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		tb.ShopID, tb.StaffID, formatTime(tb.StartTime), formatTime(tb.EndTime), tb.Reason, tb.CreatedBy, now,
	)
	if err != nil {
		return fmt.Errorf("insert time block: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	tb.ID = id
	tb.CreatedAt = now
	return nil
}

// ListStaffBlocks returns the staff member's blocks overlapping [from, to).
func (db *DB) ListStaffBlocks(ctx context.Context, staffID int64, from, to time.Time) ([]model.TimeBlock, error) {
	return db.ListBlocksForStaff(ctx, []int64{staffID}, from, to)
}

// ListBlocksForStaff returns blocks of any of staffIDs overlapping [from, to).
func (db *DB) ListBlocksForStaff(ctx context.Context, staffIDs []int64, from, to time.Time) ([]model.TimeBlock, error) {
	if len(staffIDs) == 0 {
		return nil, nil
	}

	args := int64Args(staffIDs)
	args = append(args, formatTime(to), formatTime(from))
	rows, err := db.conn(ctx).QueryContext(ctx, `
		SELECT id, shop_id, staff_id, start_time, end_time, reason, created_by, created_at
		FROM time_blocks
		WHERE staff_id IN (`+placeholders(len(staffIDs))+`)
		AND start_time < ? AND end_time > ?
		ORDER BY start_time`, args...)
	if err != nil {
		return nil, fmt.Errorf("list time blocks: %w", err)
	}
	defer rows.Close()

	var blocks []model.TimeBlock
	for rows.Next() {
		var (
			tb         model.TimeBlock
			start, end string
			reason     *string
		)
		if err := rows.Scan(&tb.ID, &tb.ShopID, &tb.StaffID, &start, &end, &reason, &tb.CreatedBy, &tb.CreatedAt); err != nil {
			return nil, err
		}
		if tb.StartTime, err = db.parseTime(start); err != nil {
			return nil, err
		}
		if tb.EndTime, err = db.parseTime(end); err != nil {
			return nil, err
		}
		if reason != nil {
			tb.Reason = *reason
		}
		blocks = append(blocks, tb)
	}
	return blocks, rows.Err()
}
