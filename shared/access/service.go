// Package access decides which user may act on which shop, booking or time block.
package access

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"petagenda/internal/model"
)

// Service evaluates role rules and logs every denial.
type Service struct {
	logger zerolog.Logger
}

// NewService creates a new access control service.
func NewService(logger zerolog.Logger) *Service {
	return &Service{
		logger: logger.With().Str("component", "access").Logger(),
	}
}

// IsShopStaff reports whether the user belongs to the shop: its owner, or a
// manager or employee working there.
func IsShopStaff(u *model.User, shop *model.Shop) bool {
	if u == nil || shop == nil {
		return false
	}
	switch u.Role {
	case model.RoleOwner:
		return shop.OwnerID == u.ID
	case model.RoleManager, model.RoleEmployee:
		return u.WorksAt == shop.ID
	default:
		return false
	}
}

// CanBook checks that actor may create a booking of svc for pet at shop.
func (s *Service) CanBook(actor *model.User, shop *model.Shop, svc *model.Service, pet *model.Pet) error {
	if svc.ShopID != shop.ID {
		return s.deny(actor, "book", fmt.Sprintf("service %d is not offered by shop %d", svc.ID, shop.ID))
	}
	if !svc.IsActive {
		return s.deny(actor, "book", fmt.Sprintf("service %d is not active", svc.ID))
	}

	switch {
	case actor.Role == model.RoleTutor:
		if pet.TutorID != actor.ID {
			return s.deny(actor, "book", fmt.Sprintf("pet %d belongs to another tutor", pet.ID))
		}
	case actor.Role.IsStaff():
		if !IsShopStaff(actor, shop) {
			return s.deny(actor, "book", fmt.Sprintf("not staff of shop %d", shop.ID))
		}
	default:
		return s.deny(actor, "book", "unknown role")
	}
	return nil
}

// CanConfirm allows shop staff only.
func (s *Service) CanConfirm(actor *model.User, shop *model.Shop) error {
	if !IsShopStaff(actor, shop) {
		return s.deny(actor, "confirm", fmt.Sprintf("only staff of shop %d can confirm", shop.ID))
	}
	return nil
}

// CanCancel allows the booking's tutor or shop staff.
func (s *Service) CanCancel(actor *model.User, b *model.Booking, shop *model.Shop) error {
	return s.tutorOrStaff(actor, b, shop, "cancel")
}

// CanView allows the booking's tutor or shop staff.
func (s *Service) CanView(actor *model.User, b *model.Booking, shop *model.Shop) error {
	return s.tutorOrStaff(actor, b, shop, "view")
}

// CanRepeat applies the cancel rule to a recurrence request on b.
func (s *Service) CanRepeat(actor *model.User, b *model.Booking, shop *model.Shop) error {
	return s.tutorOrStaff(actor, b, shop, "repeat")
}

func (s *Service) tutorOrStaff(actor *model.User, b *model.Booking, shop *model.Shop, action string) error {
	if actor.Role == model.RoleTutor && b.TutorID != nil && *b.TutorID == actor.ID {
		return nil
	}
	if IsShopStaff(actor, shop) {
		return nil
	}
	return s.deny(actor, action, fmt.Sprintf("booking %d belongs to someone else", b.ID))
}

// CanBlockTime allows an owner of the shop or a manager working at it to
// block an employee who works at the shop.
func (s *Service) CanBlockTime(actor *model.User, shop *model.Shop, employee *model.User) error {
	if actor.Role != model.RoleOwner && actor.Role != model.RoleManager {
		return s.deny(actor, "block_time", "only owners and managers can block time")
	}
	if !IsShopStaff(actor, shop) {
		return s.deny(actor, "block_time", fmt.Sprintf("not staff of shop %d", shop.ID))
	}
	if employee == nil || !IsShopStaff(employee, shop) {
		return s.deny(actor, "block_time", fmt.Sprintf("employee does not work at shop %d", shop.ID))
	}
	return nil
}

func (s *Service) deny(actor *model.User, action, reason string) error {
	var id int64
	var role model.Role
	if actor != nil {
		id, role = actor.ID, actor.Role
	}
	s.logger.Info().
		Int64("user_id", id).
		Str("role", string(role)).
		Str("action", action).
		Str("reason", reason).
		Msg("access denied")
	return &DeniedError{Action: action, Reason: reason}
}

// DeniedError is returned when an action is not permitted for the user.
type DeniedError struct {
	Action string
	Reason string
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("%s denied: %s", e.Action, e.Reason)
}

// IsAccessDenied checks if error is access denied.
func IsAccessDenied(err error) bool {
	var de *DeniedError
	return errors.As(err, &de)
}
