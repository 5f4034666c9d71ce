package access

import (
	"fmt"
	"io"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"petagenda/internal/model"
)

var (
	shop     = &model.Shop{ID: 1, OwnerID: 10}
	owner    = &model.User{ID: 10, Role: model.RoleOwner}
	manager  = &model.User{ID: 20, Role: model.RoleManager, WorksAt: 1}
	employee = &model.User{ID: 11, Role: model.RoleEmployee, WorksAt: 1}
	outsider = &model.User{ID: 30, Role: model.RoleEmployee, WorksAt: 2}
	stranger = &model.User{ID: 40, Role: model.RoleOwner}
	tutor    = &model.User{ID: 50, Role: model.RoleTutor}
	other    = &model.User{ID: 51, Role: model.RoleTutor}
)

func TestCanBook(t *testing.T) {
	s := NewService(zerolog.New(io.Discard))
	svc := &model.Service{ID: 3, ShopID: 1, IsActive: true}
	pet := &model.Pet{ID: 9, TutorID: 50}

	tests := []struct {
		name  string
		actor *model.User
		svc   *model.Service
		allow bool
	}{
		{"tutor books own pet", tutor, svc, true},
		{"tutor books someone else's pet", other, svc, false},
		{"owner of shop", owner, svc, true},
		{"owner of another shop", stranger, svc, false},
		{"employee of shop", employee, svc, true},
		{"employee elsewhere", outsider, svc, false},
		{"service of another shop", tutor, &model.Service{ID: 4, ShopID: 2, IsActive: true}, false},
		{"inactive service", tutor, &model.Service{ID: 5, ShopID: 1}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.CanBook(tt.actor, shop, tt.svc, pet)
			if tt.allow {
				assert.NoError(t, err)
				return
			}
			assert.True(t, IsAccessDenied(err))
		})
	}
}

func TestCanConfirmAndCancel(t *testing.T) {
	s := NewService(zerolog.New(io.Discard))
	tid := int64(50)
	b := &model.Booking{ID: 1, ShopID: 1, TutorID: &tid}

	assert.NoError(t, s.CanConfirm(employee, shop))
	assert.NoError(t, s.CanConfirm(owner, shop))
	assert.True(t, IsAccessDenied(s.CanConfirm(tutor, shop)))
	assert.True(t, IsAccessDenied(s.CanConfirm(outsider, shop)))

	assert.NoError(t, s.CanCancel(tutor, b, shop))
	assert.NoError(t, s.CanCancel(manager, b, shop))
	assert.True(t, IsAccessDenied(s.CanCancel(other, b, shop)))
	assert.True(t, IsAccessDenied(s.CanCancel(stranger, b, shop)))
}

func TestCanBlockTime(t *testing.T) {
	s := NewService(zerolog.New(io.Discard))

	assert.NoError(t, s.CanBlockTime(owner, shop, employee))
	assert.NoError(t, s.CanBlockTime(manager, shop, employee))
	assert.True(t, IsAccessDenied(s.CanBlockTime(employee, shop, employee)), "employees cannot block time")
	assert.True(t, IsAccessDenied(s.CanBlockTime(stranger, shop, employee)), "owner of another shop")
	assert.True(t, IsAccessDenied(s.CanBlockTime(owner, shop, outsider)), "employee of another shop")
	assert.True(t, IsAccessDenied(s.CanBlockTime(tutor, shop, employee)))
}

func TestDeniedError(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", &DeniedError{Action: "confirm", Reason: "nope"})
	assert.True(t, IsAccessDenied(err))
	assert.EqualError(t, err, "wrapped: confirm denied: nope")
	assert.False(t, IsAccessDenied(fmt.Errorf("other")))
}
