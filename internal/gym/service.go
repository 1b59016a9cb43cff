// Package gym holds the front-desk operations: registering and renewing
// members, editing and removing records, checking in, searching, and the
// reports built on the local store. Every mutation asks the sync trigger
// for a run.
package gym

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hyperengineering/frontdesk/internal/auth"
	"github.com/hyperengineering/frontdesk/internal/store"
	"github.com/hyperengineering/frontdesk/internal/types"
	"github.com/hyperengineering/frontdesk/internal/validation"
)

const (
	maxNameLength  = 120
	maxNotesLength = 500
	maxPrice       = 100000
	maxPlanDays    = 366
)

// defaultPrices pre-fill a plan's price when neither the caller nor the
// catalog supplies one.
var defaultPrices = map[types.PlanCategory]float64{
	types.PlanMonthly:  500,
	types.PlanBiweekly: 300,
	types.PlanDay:      50,
}

var planCategories = []string{string(types.PlanMonthly), string(types.PlanBiweekly), string(types.PlanDay)}

// Store is the local store as the front desk uses it.
type Store interface {
	AddMember(ctx context.Context, m types.Member) (*types.Member, error)
	UpdateMember(ctx context.Context, id int64, c store.Changes) error
	GetMemberByKey(ctx context.Context, key string) (*types.Member, error)
	ListMembers(ctx context.Context) ([]types.Member, error)
	MembersByPhonePrefix(ctx context.Context, prefix string) ([]types.Member, error)

	AddPlan(ctx context.Context, p types.MemberPlan) (*types.MemberPlan, error)
	UpdatePlan(ctx context.Context, id int64, c store.Changes) error
	GetPlan(ctx context.Context, id int64) (*types.MemberPlan, error)
	GetPlanByKey(ctx context.Context, key string) (*types.MemberPlan, error)
	PlansForMember(ctx context.Context, memberKey string) ([]types.MemberPlan, error)

	AddAttendance(ctx context.Context, a types.Attendance) (*types.Attendance, error)
	AttendancesBetween(ctx context.Context, from, to time.Time) ([]types.Attendance, error)
	AttendancesForMember(ctx context.Context, memberKey string) ([]types.Attendance, error)

	AddStaff(ctx context.Context, st types.Staff) (*types.Staff, error)
	CountStaff(ctx context.Context) (int64, error)
	ListStaff(ctx context.Context) ([]types.Staff, error)

	GetCatalogPlan(ctx context.Context, id string) (*types.CatalogPlan, error)
}

// SyncRequester is told about every local mutation.
type SyncRequester interface {
	Request()
}

type noopRequester struct{}

func (noopRequester) Request() {}

// Option configures a Service.
type Option func(*Service)

// WithClock sets the clock used for start and check-in times.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLocation sets the zone whose calendar days bound plans and reports.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) { s.loc = loc }
}

// Service runs front-desk operations against the local store.
type Service struct {
	store Store
	sync  SyncRequester
	now   func() time.Time
	loc   *time.Location
}

// NewService creates a service. A nil requester disables sync requests.
func NewService(s Store, sync SyncRequester, opts ...Option) *Service {
	if sync == nil {
		sync = noopRequester{}
	}
	svc := &Service{
		store: s,
		sync:  sync,
		now:   time.Now,
		loc:   time.Local,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// PlanInput describes a plan to sell. CatalogID, when set, supplies the
// category, day count and price the caller left empty.
type PlanInput struct {
	Category  types.PlanCategory
	CatalogID string
	Days      int
	Price     *float64
	IsPromo   bool
	Notes     string
	StartAt   time.Time
}

// Registration is a new member with their first plan.
type Registration struct {
	Name  string
	Phone string
	Plan  PlanInput
}

// Registered is the stored result of a registration.
type Registered struct {
	Member types.Member     `json:"member"`
	Plan   types.MemberPlan `json:"plan"`
}

// Register creates a member identity and its first plan, attributed to
// sess when one is given.
func (s *Service) Register(ctx context.Context, sess *auth.Session, r Registration) (*Registered, error) {
	v := &validation.Collector{}
	validateIdentity(v, r.Name, r.Phone)
	plan, err := s.resolvePlan(ctx, v, r.Plan)
	if err != nil {
		return nil, err
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	m, err := s.store.AddMember(ctx, types.Member{
		Key:   uuid.NewString(),
		Name:  strings.TrimSpace(r.Name),
		Phone: validation.NormalizePhone(r.Phone),
	})
	if err != nil {
		return nil, fmt.Errorf("register member: %w", err)
	}

	p, err := s.addPlan(ctx, sess, m.Key, plan)
	if err != nil {
		return nil, err
	}
	s.sync.Request()
	return &Registered{Member: *m, Plan: *p}, nil
}

// Renew sells a new plan to an existing member.
func (s *Service) Renew(ctx context.Context, sess *auth.Session, memberKey string, in PlanInput) (*types.MemberPlan, error) {
	if _, err := s.liveMember(ctx, memberKey); err != nil {
		return nil, err
	}
	v := &validation.Collector{}
	plan, err := s.resolvePlan(ctx, v, in)
	if err != nil {
		return nil, err
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	p, err := s.addPlan(ctx, sess, memberKey, plan)
	if err != nil {
		return nil, err
	}
	s.sync.Request()
	return p, nil
}

// MemberEdit changes identity fields. Nil fields are left alone.
type MemberEdit struct {
	Name  *string
	Phone *string
}

// EditMember applies e to the member.
func (s *Service) EditMember(ctx context.Context, memberKey string, e MemberEdit) (*types.Member, error) {
	m, err := s.liveMember(ctx, memberKey)
	if err != nil {
		return nil, err
	}

	name, phone := m.Name, m.Phone
	if e.Name != nil {
		name = *e.Name
	}
	if e.Phone != nil {
		phone = *e.Phone
	}
	v := &validation.Collector{}
	validateIdentity(v, name, phone)
	if err := v.Err(); err != nil {
		return nil, err
	}

	c := store.Changes{}
	if e.Name != nil {
		c["name"] = strings.TrimSpace(name)
	}
	if e.Phone != nil {
		c["phone"] = validation.NormalizePhone(phone)
	}
	if len(c) == 0 {
		return m, nil
	}
	if err := s.store.UpdateMember(ctx, m.ID, c); err != nil {
		return nil, fmt.Errorf("edit member: %w", err)
	}
	s.sync.Request()
	return s.store.GetMemberByKey(ctx, memberKey)
}

// PlanEdit changes plan fields. Nil fields are left alone.
type PlanEdit struct {
	Category *types.PlanCategory
	Days     *int
	Price    *float64
	IsPromo  *bool
	Notes    *string
	StartAt  *time.Time
}

// EditPlan applies e to the plan with the given sync key.
func (s *Service) EditPlan(ctx context.Context, planKey string, e PlanEdit) (*types.MemberPlan, error) {
	p, err := s.plan(ctx, planKey)
	if err != nil {
		return nil, err
	}

	v := &validation.Collector{}
	c := store.Changes{}
	if e.Category != nil {
		v.Add(validation.ValidateEnum("plan", string(*e.Category), planCategories))
		c["plan_category"] = string(*e.Category)
	}
	if e.Days != nil {
		v.Add(validation.ValidateRange("days", float64(*e.Days), 0, maxPlanDays))
		c["plan_days"] = *e.Days
	}
	if e.Price != nil {
		v.Add(validation.ValidateRange("price", *e.Price, 0, maxPrice))
		c["price"] = *e.Price
	}
	if e.IsPromo != nil {
		c["is_promo"] = *e.IsPromo
	}
	if e.Notes != nil {
		validation.ValidateText(v, "notes", *e.Notes, maxNotesLength)
		c["notes"] = *e.Notes
	}
	if e.StartAt != nil {
		c["start_at"] = types.CanonicalInstant(*e.StartAt)
	}
	if err := v.Err(); err != nil {
		return nil, err
	}
	if len(c) == 0 {
		return p, nil
	}

	if err := s.store.UpdatePlan(ctx, p.ID, c); err != nil {
		return nil, fmt.Errorf("edit plan: %w", err)
	}
	s.sync.Request()
	return s.store.GetPlan(ctx, p.ID)
}

// DeleteMember soft-deletes a member. The flag propagates like any edit.
func (s *Service) DeleteMember(ctx context.Context, memberKey string) error {
	m, err := s.liveMember(ctx, memberKey)
	if err != nil {
		return err
	}
	if err := s.store.UpdateMember(ctx, m.ID, store.Changes{"deleted": true}); err != nil {
		return fmt.Errorf("delete member: %w", err)
	}
	s.sync.Request()
	return nil
}

// DeletePlan soft-deletes one plan.
func (s *Service) DeletePlan(ctx context.Context, planKey string) error {
	p, err := s.plan(ctx, planKey)
	if err != nil {
		return err
	}
	if p.Deleted {
		return nil
	}
	if err := s.store.UpdatePlan(ctx, p.ID, store.Changes{"deleted": true}); err != nil {
		return fmt.Errorf("delete plan: %w", err)
	}
	s.sync.Request()
	return nil
}

func (s *Service) liveMember(ctx context.Context, key string) (*types.Member, error) {
	m, err := s.store.GetMemberByKey(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrMemberNotFound
	}
	if err != nil {
		return nil, err
	}
	if m.Deleted {
		return nil, ErrMemberNotFound
	}
	return m, nil
}

func (s *Service) plan(ctx context.Context, key string) (*types.MemberPlan, error) {
	p, err := s.store.GetPlanByKey(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrPlanNotFound
	}
	return p, err
}

func validateIdentity(v *validation.Collector, name, phone string) {
	v.Add(validation.ValidateRequired("name", name))
	validation.ValidateText(v, "name", name, maxNameLength)
	v.Add(validation.ValidatePhone("phone", phone))
}

// resolvePlan fills catalog and category defaults and validates the result.
// Validation failures go to v; only store errors are returned.
func (s *Service) resolvePlan(ctx context.Context, v *validation.Collector, in PlanInput) (types.MemberPlan, error) {
	p := types.MemberPlan{
		Category:  in.Category,
		CatalogID: in.CatalogID,
		Days:      in.Days,
		IsPromo:   in.IsPromo,
		Notes:     in.Notes,
		StartAt:   in.StartAt,
	}

	var price *float64
	if in.Price != nil {
		price = in.Price
	}
	if in.CatalogID != "" {
		cat, err := s.store.GetCatalogPlan(ctx, in.CatalogID)
		switch {
		case errors.Is(err, store.ErrNotFound):
			v.Add(&validation.ValidationError{Field: "catalog_id", Message: "is not a known plan"})
		case err != nil:
			return p, fmt.Errorf("lookup catalog plan: %w", err)
		case !cat.Active:
			v.Add(&validation.ValidationError{Field: "catalog_id", Message: "is not an active plan"})
		default:
			if p.Category == "" {
				p.Category = categoryFor(cat)
			}
			if p.Days == 0 {
				p.Days = cat.DaysActive
			}
			if price == nil {
				price = &cat.Price
			}
		}
	}
	if p.Category == "" {
		p.Category = types.PlanMonthly
	}
	if price != nil {
		p.Price = *price
	} else {
		p.Price = defaultPrices[p.Category]
	}
	if p.StartAt.IsZero() {
		p.StartAt = s.now()
	}
	p.StartAt = types.CanonicalInstant(p.StartAt)

	v.Add(validation.ValidateEnum("plan", string(p.Category), planCategories))
	v.Add(validation.ValidateRange("days", float64(p.Days), 0, maxPlanDays))
	v.Add(validation.ValidateRange("price", p.Price, 0, maxPrice))
	validation.ValidateText(v, "notes", p.Notes, maxNotesLength)
	return p, nil
}

// categoryFor maps a catalog template to the plan category whose name it
// carries, defaulting to monthly.
func categoryFor(cat *types.CatalogPlan) types.PlanCategory {
	for _, c := range planCategories {
		if strings.EqualFold(cat.Description, c) {
			return types.PlanCategory(c)
		}
	}
	switch {
	case cat.DaysActive == 1:
		return types.PlanDay
	case cat.DaysActive > 0 && cat.DaysActive <= 15:
		return types.PlanBiweekly
	default:
		return types.PlanMonthly
	}
}

func (s *Service) addPlan(ctx context.Context, sess *auth.Session, memberKey string, p types.MemberPlan) (*types.MemberPlan, error) {
	p.SyncKey = uuid.NewString()
	p.MemberKey = memberKey
	if sess != nil {
		p.RegisteredBy = sess.StaffKey
		p.RegisteredByName = sess.Name
	}
	stored, err := s.store.AddPlan(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("add plan: %w", err)
	}
	return stored, nil
}
