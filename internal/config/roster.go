package config

import (
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"petagenda/internal/model"
)

// HoursConfig is one weekday of working hours as written in roster.yaml.
// A day without a break is written with break_start/break_end omitted.
type HoursConfig struct {
	Start      string `yaml:"start"`
	BreakStart string `yaml:"break_start,omitempty"`
	BreakEnd   string `yaml:"break_end,omitempty"`
	End        string `yaml:"end"`
}

type ShopConfig struct {
	ID      int64  `yaml:"id"`
	OwnerID int64  `yaml:"owner_id"`
	Name    string `yaml:"name"`
	Address string `yaml:"address"`
	Phone   string `yaml:"phone"`
}

type UserConfig struct {
	ID       int64                  `yaml:"id"`
	Username string                 `yaml:"username"`
	Name     string                 `yaml:"name"`
	Phone    string                 `yaml:"phone"`
	Role     string                 `yaml:"role"`
	WorksAt  int64                  `yaml:"works_at"`
	Schedule map[string]HoursConfig `yaml:"schedule,omitempty"`
}

type ServiceConfig struct {
	ID              int64   `yaml:"id"`
	ShopID          int64   `yaml:"shop_id"`
	Name            string  `yaml:"name"`
	DurationMinutes int     `yaml:"duration_minutes"`
	BufferMinutes   int     `yaml:"buffer_minutes"`
	BasePriceCents  int64   `yaml:"base_price_cents"`
	Inactive        bool    `yaml:"inactive"`
	Performers      []int64 `yaml:"performers"`
}

type PetConfig struct {
	ID      int64  `yaml:"id"`
	TutorID int64  `yaml:"tutor_id"`
	Name    string `yaml:"name"`
	Species string `yaml:"species"`
	Size    string `yaml:"size"`
}

// RosterConfig is the root of roster.yaml.
type RosterConfig struct {
	Shops    []ShopConfig    `yaml:"shops"`
	Users    []UserConfig    `yaml:"users"`
	Services []ServiceConfig `yaml:"services"`
	Pets     []PetConfig     `yaml:"pets"`
	Defaults struct {
		Schedule map[string]HoursConfig `yaml:"schedule"`
	} `yaml:"defaults"`
}

// LoadRoster loads and validates roster.yaml.
func LoadRoster(path string) (*RosterConfig, error) {
	if path == "" {
		path = "configs/roster.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roster config: %w", err)
	}
	return ParseRoster(data)
}

// ParseRoster decodes and validates a roster document.
func ParseRoster(data []byte) (*RosterConfig, error) {
	var cfg RosterConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse roster config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate roster config: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// Validate checks ids, references and schedules.
func (c *RosterConfig) Validate() error {
	if len(c.Shops) == 0 {
		return fmt.Errorf("no shops defined")
	}

	shops := make(map[int64]ShopConfig)
	for i, s := range c.Shops {
		if s.ID <= 0 {
			return fmt.Errorf("shops[%d]: id must be positive, got %d", i, s.ID)
		}
		if _, dup := shops[s.ID]; dup {
			return fmt.Errorf("shops[%d]: duplicate id %d", i, s.ID)
		}
		if s.Name == "" {
			return fmt.Errorf("shops[%d]: name is required", i)
		}
		shops[s.ID] = s
	}

	users := make(map[int64]UserConfig)
	usernames := make(map[string]bool)
	for i, u := range c.Users {
		prefix := fmt.Sprintf("users[%d]", i)
		if u.ID <= 0 {
			return fmt.Errorf("%s: id must be positive, got %d", prefix, u.ID)
		}
		if _, dup := users[u.ID]; dup {
			return fmt.Errorf("%s: duplicate id %d", prefix, u.ID)
		}
		if u.Username == "" {
			return fmt.Errorf("%s: username is required", prefix)
		}
		if usernames[u.Username] {
			return fmt.Errorf("%s: duplicate username '%s'", prefix, u.Username)
		}
		usernames[u.Username] = true

		role := model.Role(u.Role)
		if !role.Valid() {
			return fmt.Errorf("%s: unknown role '%s'", prefix, u.Role)
		}
		if role == model.RoleManager || role == model.RoleEmployee {
			if _, ok := shops[u.WorksAt]; !ok {
				return fmt.Errorf("%s: works_at %d is not a known shop", prefix, u.WorksAt)
			}
		}
		if _, err := toWorkSchedule(u.Schedule, prefix+".schedule"); err != nil {
			return err
		}
		users[u.ID] = u
	}

	for i, s := range c.Shops {
		owner, ok := users[s.OwnerID]
		if !ok || model.Role(owner.Role) != model.RoleOwner {
			return fmt.Errorf("shops[%d]: owner_id %d is not an OWNER", i, s.OwnerID)
		}
	}

	serviceIDs := make(map[int64]bool)
	for i, s := range c.Services {
		prefix := fmt.Sprintf("services[%d]", i)
		if s.ID <= 0 {
			return fmt.Errorf("%s: id must be positive, got %d", prefix, s.ID)
		}
		if serviceIDs[s.ID] {
			return fmt.Errorf("%s: duplicate id %d", prefix, s.ID)
		}
		serviceIDs[s.ID] = true
		if _, ok := shops[s.ShopID]; !ok {
			return fmt.Errorf("%s: shop_id %d is not a known shop", prefix, s.ShopID)
		}
		if s.DurationMinutes < 0 || s.BufferMinutes < 0 {
			return fmt.Errorf("%s: duration and buffer cannot be negative", prefix)
		}
		if s.BasePriceCents < 0 {
			return fmt.Errorf("%s: base_price_cents cannot be negative", prefix)
		}
		for _, pid := range s.Performers {
			p, ok := users[pid]
			if !ok || !model.Role(p.Role).IsStaff() {
				return fmt.Errorf("%s: performer %d is not a staff member", prefix, pid)
			}
		}
	}

	petIDs := make(map[int64]bool)
	for i, p := range c.Pets {
		if p.ID <= 0 {
			return fmt.Errorf("pets[%d]: id must be positive, got %d", i, p.ID)
		}
		if petIDs[p.ID] {
			return fmt.Errorf("pets[%d]: duplicate id %d", i, p.ID)
		}
		petIDs[p.ID] = true
		tutor, ok := users[p.TutorID]
		if !ok || model.Role(tutor.Role) != model.RoleTutor {
			return fmt.Errorf("pets[%d]: tutor_id %d is not a TUTOR", i, p.TutorID)
		}
	}

	if _, err := toWorkSchedule(c.Defaults.Schedule, "defaults.schedule"); err != nil {
		return err
	}
	return nil
}

// applyDefaults gives performers without explicit hours the default schedule.
func (c *RosterConfig) applyDefaults() {
	if len(c.Defaults.Schedule) == 0 {
		return
	}
	performers := make(map[int64]bool)
	for _, s := range c.Services {
		for _, id := range s.Performers {
			performers[id] = true
		}
	}
	for i := range c.Users {
		if performers[c.Users[i].ID] && len(c.Users[i].Schedule) == 0 {
			c.Users[i].Schedule = c.Defaults.Schedule
		}
	}
}

// WorkSchedule converts the user's hours into the model form.
func (u UserConfig) WorkSchedule() model.WorkSchedule {
	ws, _ := toWorkSchedule(u.Schedule, "")
	return ws
}

// Model converts the entry, schedule included.
func (u UserConfig) Model() model.User {
	return model.User{
		ID:       u.ID,
		Username: u.Username,
		Name:     u.Name,
		Phone:    u.Phone,
		Role:     model.Role(u.Role),
		WorksAt:  u.WorksAt,
		Schedule: u.WorkSchedule(),
	}
}

func (s ServiceConfig) Model() model.Service {
	performers := append([]int64(nil), s.Performers...)
	sort.Slice(performers, func(i, j int) bool { return performers[i] < performers[j] })
	return model.Service{
		ID:              s.ID,
		ShopID:          s.ShopID,
		Name:            s.Name,
		DurationMinutes: s.DurationMinutes,
		BufferMinutes:   s.BufferMinutes,
		BasePriceCents:  s.BasePriceCents,
		IsActive:        !s.Inactive,
		PerformerIDs:    performers,
	}
}

func toWorkSchedule(days map[string]HoursConfig, prefix string) (model.WorkSchedule, error) {
	if len(days) == 0 {
		return nil, nil
	}
	ws := make(model.WorkSchedule, len(days))
	for name, h := range days {
		wd, err := model.ParseWeekday(name)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", prefix, err)
		}
		ds, err := h.toDaySchedule()
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", prefix, name, err)
		}
		ws[wd] = ds
	}
	return ws, nil
}

func (h HoursConfig) toDaySchedule() (model.DaySchedule, error) {
	var ds model.DaySchedule
	var err error

	if ds.Start, err = model.ParseTimeOfDay(h.Start); err != nil {
		return ds, err
	}
	if ds.End, err = model.ParseTimeOfDay(h.End); err != nil {
		return ds, err
	}
	if ds.End <= ds.Start {
		return ds, fmt.Errorf("end %s must be after start %s", ds.End, ds.Start)
	}

	switch {
	case h.BreakStart == "" && h.BreakEnd == "":
		// no break: the afternoon window is empty
		ds.BreakStart, ds.BreakEnd = ds.End, ds.End
	case h.BreakStart == "" || h.BreakEnd == "":
		return ds, fmt.Errorf("break_start and break_end must be set together")
	default:
		if ds.BreakStart, err = model.ParseTimeOfDay(h.BreakStart); err != nil {
			return ds, err
		}
		if ds.BreakEnd, err = model.ParseTimeOfDay(h.BreakEnd); err != nil {
			return ds, err
		}
	}

	return ds, ds.Validate()
}

// ShopByID returns the shop with id or nil.
func (c *RosterConfig) ShopByID(id int64) *ShopConfig {
	for i := range c.Shops {
		if c.Shops[i].ID == id {
			return &c.Shops[i]
		}
	}
	return nil
}

// String returns a summary of the roster.
func (c *RosterConfig) String() string {
	staff := 0
	for _, u := range c.Users {
		if model.Role(u.Role).IsStaff() {
			staff++
		}
	}
	return fmt.Sprintf("RosterConfig: %d shops, %d staff, %d services, %d pets",
		len(c.Shops), staff, len(c.Services), len(c.Pets))
}

// ParseDate parses YYYY-MM-DD at midnight in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation("2006-01-02", s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date '%s', expected YYYY-MM-DD", s)
	}
	return t, nil
}
