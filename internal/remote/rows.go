package remote

import (
	"time"

	"github.com/hyperengineering/frontdesk/internal/types"
)

// Wire rows use the remote store's column names. Optional text columns are
// sent as explicit nulls and booleans as explicit false, never omitted.

// MemberRow is a member identity in the members collection.
type MemberRow struct {
	MemberID  string     `json:"memberId"`
	Nombre    string     `json:"nombre"`
	Telefono  *string    `json:"telefono"`
	Deleted   bool       `json:"deleted"`
	UpdatedAt time.Time  `json:"updated_at"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

// PlanRow is a plan instance in the member_plans collection. ID is the
// plan's sync key.
type PlanRow struct {
	ID               string     `json:"id"`
	MemberID         string     `json:"memberId"`
	PlanTipo         string     `json:"plan_tipo"`
	PlanDays         *int       `json:"plan_days"`
	PlanID           *string    `json:"plan_id"`
	Costo            float64    `json:"costo"`
	IsPromo          bool       `json:"is_promo"`
	Notes            *string    `json:"notes"`
	FechaInicio      time.Time  `json:"fecha_inicio"`
	Deleted          bool       `json:"deleted"`
	UpdatedAt        time.Time  `json:"updated_at"`
	RegisteredBy     *string    `json:"registered_by"`
	RegisteredByName *string    `json:"registered_by_name"`
	CreatedAt        *time.Time `json:"created_at,omitempty"`
}

// AttendanceRow is a check-in in the attendances collection. ID is assigned
// by the remote store and never kept locally.
type AttendanceRow struct {
	ID           string     `json:"id,omitempty"`
	MemberID     string     `json:"memberId"`
	MemberPlanID *string    `json:"member_plan_id"`
	FechaHora    time.Time  `json:"fecha_hora"`
	CreatedAt    *time.Time `json:"created_at,omitempty"`
}

// StaffRow is a staff account in the staff collection.
type StaffRow struct {
	StaffID   string     `json:"staffId"`
	Nombre    string     `json:"nombre"`
	Username  string     `json:"username"`
	Password  string     `json:"password"`
	Role      string     `json:"role"`
	Deleted   bool       `json:"deleted"`
	UpdatedAt time.Time  `json:"updated_at"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

// CatalogRow is a system plan template in the read-only plans collection.
type CatalogRow struct {
	ID          string  `json:"id"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	DaysActive  int     `json:"days_active"`
	Active      bool    `json:"active"`
}

// ConflictKeys are the unique keys each collection is written by.
var ConflictKeys = map[types.Collection][]string{
	types.CollectionMembers:     {"memberId"},
	types.CollectionMemberPlans: {"id"},
	types.CollectionAttendances: {"memberId", "fecha_hora"},
	types.CollectionStaff:       {"staffId"},
	types.CollectionPlans:       {"id"},
}

func MemberRowFrom(m types.Member) MemberRow {
	return MemberRow{
		MemberID:  m.Key,
		Nombre:    m.Name,
		Telefono:  optional(m.Phone),
		Deleted:   m.Deleted,
		UpdatedAt: types.CanonicalInstant(m.UpdatedAt),
	}
}

// Member converts the row to a local identity.
func (r MemberRow) Member() types.Member {
	return types.Member{
		Key:       r.MemberID,
		Name:      r.Nombre,
		Phone:     deref(r.Telefono),
		Deleted:   r.Deleted,
		UpdatedAt: types.CanonicalInstant(r.UpdatedAt),
	}
}

func PlanRowFrom(p types.MemberPlan) PlanRow {
	row := PlanRow{
		ID:               p.SyncKey,
		MemberID:         p.MemberKey,
		PlanTipo:         string(p.Category),
		PlanID:           optional(p.CatalogID),
		Costo:            p.Price,
		IsPromo:          p.IsPromo,
		Notes:            optional(p.Notes),
		FechaInicio:      types.CanonicalInstant(p.StartAt),
		Deleted:          p.Deleted,
		UpdatedAt:        types.CanonicalInstant(p.UpdatedAt),
		RegisteredBy:     optional(p.RegisteredBy),
		RegisteredByName: optional(p.RegisteredByName),
	}
	if p.Days > 0 {
		days := p.Days
		row.PlanDays = &days
	}
	return row
}

// Plan converts the row to a local plan instance.
func (r PlanRow) Plan() types.MemberPlan {
	p := types.MemberPlan{
		SyncKey:          r.ID,
		MemberKey:        r.MemberID,
		Category:         types.PlanCategory(r.PlanTipo),
		CatalogID:        deref(r.PlanID),
		Price:            r.Costo,
		IsPromo:          r.IsPromo,
		Notes:            deref(r.Notes),
		StartAt:          types.CanonicalInstant(r.FechaInicio),
		Deleted:          r.Deleted,
		UpdatedAt:        types.CanonicalInstant(r.UpdatedAt),
		RegisteredBy:     deref(r.RegisteredBy),
		RegisteredByName: deref(r.RegisteredByName),
	}
	if r.PlanDays != nil {
		p.Days = *r.PlanDays
	}
	return p
}

func AttendanceRowFrom(a types.Attendance) AttendanceRow {
	return AttendanceRow{
		MemberID:     a.MemberKey,
		MemberPlanID: optional(a.PlanKey),
		FechaHora:    types.CanonicalInstant(a.CheckedInAt),
	}
}

// Attendance converts the row to a local check-in. The remote store keeps
// no last-modified time for events, so the creation time stands in.
func (r AttendanceRow) Attendance() types.Attendance {
	a := types.Attendance{
		MemberKey:   r.MemberID,
		PlanKey:     deref(r.MemberPlanID),
		CheckedInAt: types.CanonicalInstant(r.FechaHora),
	}
	if r.CreatedAt != nil {
		a.CreatedAt = types.CanonicalInstant(*r.CreatedAt)
	} else {
		a.CreatedAt = a.CheckedInAt
	}
	a.UpdatedAt = a.CreatedAt
	return a
}

func StaffRowFrom(s types.Staff) StaffRow {
	row := StaffRow{
		StaffID:   s.Key,
		Nombre:    s.Name,
		Username:  s.Username,
		Password:  s.Credential,
		Role:      string(s.Role),
		Deleted:   s.Deleted,
		UpdatedAt: types.CanonicalInstant(s.UpdatedAt),
	}
	if !s.CreatedAt.IsZero() {
		created := types.CanonicalInstant(s.CreatedAt)
		row.CreatedAt = &created
	}
	return row
}

// Staff converts the row to a local staff account.
func (r StaffRow) Staff() types.Staff {
	s := types.Staff{
		Key:        r.StaffID,
		Name:       r.Nombre,
		Username:   r.Username,
		Credential: r.Password,
		Role:       types.Role(r.Role),
		Deleted:    r.Deleted,
		UpdatedAt:  types.CanonicalInstant(r.UpdatedAt),
	}
	if r.CreatedAt != nil {
		s.CreatedAt = types.CanonicalInstant(*r.CreatedAt)
	}
	return s
}

func (r CatalogRow) CatalogPlan() types.CatalogPlan {
	return types.CatalogPlan{
		ID:          r.ID,
		Description: r.Description,
		Price:       r.Price,
		DaysActive:  r.DaysActive,
		Active:      r.Active,
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
