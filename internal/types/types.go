package types

import (
	"time"
)

// Collection names a syncable entity collection. The same name is used for
// the local table and for the remote collection.
type Collection string

const (
	CollectionMembers     Collection = "members"
	CollectionMemberPlans Collection = "member_plans"
	CollectionAttendances Collection = "attendances"
	CollectionStaff       Collection = "staff"
	CollectionPlans       Collection = "plans" // read-only system plan catalog
)

// SyncOrder lists the bidirectionally synced collections in dependency
// order: later collections reference earlier ones by identity key.
var SyncOrder = []Collection{
	CollectionMembers,
	CollectionMemberPlans,
	CollectionAttendances,
	CollectionStaff,
}

// PlanCategory is the kind of membership plan purchased.
type PlanCategory string

const (
	PlanMonthly  PlanCategory = "Mensual"
	PlanBiweekly PlanCategory = "Quincenal"
	PlanDay      PlanCategory = "Día"
)

// Role is a staff account's permission level.
type Role string

const (
	RoleSuperAdmin Role = "super_admin"
	RoleAdmin      Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleSuperAdmin || r == RoleAdmin
}

// MembershipStatus is the derived state of a member's current plan.
type MembershipStatus string

const (
	StatusActive  MembershipStatus = "Active"
	StatusExpired MembershipStatus = "Expired"
)

// Member is a person's identity (MemberIdentity). Plan details live on
// MemberPlan rows that reference Key.
type Member struct {
	ID        int64     `json:"id"`
	Key       string    `json:"member_key"` // empty only for legacy rows not yet pushed
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Deleted   bool      `json:"deleted"`
	UpdatedAt time.Time `json:"updated_at"`
	Dirty     bool      `json:"dirty"`
}

// MemberPlan is one purchased or assigned subscription period.
type MemberPlan struct {
	ID               int64        `json:"id"`
	SyncKey          string       `json:"sync_key"`
	MemberKey        string       `json:"member_key"`
	Category         PlanCategory `json:"plan_category"`
	Days             int          `json:"plan_days,omitempty"` // 0 means "category default"
	CatalogID        string       `json:"catalog_id,omitempty"`
	Price            float64      `json:"price"`
	IsPromo          bool         `json:"is_promo"`
	Notes            string       `json:"notes,omitempty"`
	StartAt          time.Time    `json:"start_at"`
	Deleted          bool         `json:"deleted"`
	UpdatedAt        time.Time    `json:"updated_at"`
	Dirty            bool         `json:"dirty"`
	RegisteredBy     string       `json:"registered_by,omitempty"`
	RegisteredByName string       `json:"registered_by_name,omitempty"`
}

// Attendance is a single check-in event. Events are append-only.
type Attendance struct {
	ID int64 `json:"id"`
	// LegacyRef is the local member_plans row id the check-in was made
	// against. Kept for rows that predate identity keys.
	LegacyRef   int64     `json:"legacy_ref,omitempty"`
	MemberKey   string    `json:"member_key"`
	PlanKey     string    `json:"plan_key,omitempty"`
	CheckedInAt time.Time `json:"checked_in_at"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Dirty       bool      `json:"dirty"`
}

// Staff is a login principal.
type Staff struct {
	ID         int64     `json:"id"`
	Key        string    `json:"staff_key"`
	Name       string    `json:"name"`
	Username   string    `json:"username"`
	Credential string    `json:"-"`
	Role       Role      `json:"role"`
	CreatedAt  time.Time `json:"created_at"`
	Deleted    bool      `json:"deleted"`
	UpdatedAt  time.Time `json:"updated_at"`
	Dirty      bool      `json:"dirty"`
}

// CatalogPlan is a remote-owned plan template used to pre-fill new plans.
type CatalogPlan struct {
	ID          string  `json:"id"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	DaysActive  int     `json:"days_active"`
	Active      bool    `json:"active"`
}

// CanonicalInstant normalizes t to the representation used for storage and
// comparison: UTC with millisecond precision.
func CanonicalInstant(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}
