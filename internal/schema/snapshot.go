// Package schema describes every historical layout of the local store and
// the pure transforms that carry data from one layout to the next.
//
// Each layout version that holds syncable rows has a snapshot type. A Step
// names the version it upgrades from and to, the DDL that produces the new
// physical layout, and a Transform that derives the new rows from the old
// ones. Steps know nothing about the storage engine; the store package loads
// and writes snapshots and feeds the steps to its migration runner.
package schema

import "time"

// Snapshot is the content of the syncable tables under one layout version.
type Snapshot interface {
	Version() int64
}

// FlatMember is a pre-normalization member row: one person's identity with
// one plan's fields embedded.
type FlatMember struct {
	ID           int64
	Name         string
	Phone        string
	PlanCategory string
	Price        float64
	IsPromo      bool
	Notes        string
	StartAt      time.Time
	Deleted      bool
	UpdatedAt    time.Time
	Dirty        bool
}

// LegacyAttendance is a check-in row that only knows the local member row id.
type LegacyAttendance struct {
	ID          int64
	LegacyRef   int64
	CheckedInAt time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Dirty       bool
}

// SnapshotV2 is the flat layout with sync columns but no identity keys.
type SnapshotV2 struct {
	Members     []FlatMember
	Attendances []LegacyAttendance
}

func (SnapshotV2) Version() int64 { return 2 }

// KeyedMember is a flat member row carrying a stable identity key.
type KeyedMember struct {
	FlatMember
	MemberKey string
}

// KeyedAttendance is a check-in row carrying the owner's identity key.
// MemberKey is empty when the legacy reference could not be resolved.
type KeyedAttendance struct {
	LegacyAttendance
	MemberKey string
}

// SnapshotV3 is the flat layout after identity backfill.
type SnapshotV3 struct {
	Members     []KeyedMember
	Attendances []KeyedAttendance
}

func (SnapshotV3) Version() int64 { return 3 }

// AttributedMember is a flat keyed row that records who registered it.
type AttributedMember struct {
	KeyedMember
	RegisteredBy     string
	RegisteredByName string
}

// SnapshotV4 adds staff attribution to flat rows. Staff rows themselves are
// created empty by this version and are not carried in the snapshot.
type SnapshotV4 struct {
	Members     []AttributedMember
	Attendances []KeyedAttendance
}

func (SnapshotV4) Version() int64 { return 4 }

// Identity is a normalized member row holding identity fields only.
type Identity struct {
	ID        int64
	MemberKey string
	Name      string
	Phone     string
	Deleted   bool
	UpdatedAt time.Time
	Dirty     bool
}

// Plan is a normalized membership plan row.
type Plan struct {
	ID               int64
	SyncKey          string
	MemberKey        string
	PlanCategory     string
	Days             int
	Price            float64
	IsPromo          bool
	Notes            string
	StartAt          time.Time
	Deleted          bool
	UpdatedAt        time.Time
	Dirty            bool
	RegisteredBy     string
	RegisteredByName string
}

// LinkedAttendance is a check-in row linked to an identity and a plan.
type LinkedAttendance struct {
	KeyedAttendance
	PlanKey string
}

// SnapshotV5 is the normalized identity + plan layout.
type SnapshotV5 struct {
	Members     []Identity
	Plans       []Plan
	Attendances []LinkedAttendance
}

func (SnapshotV5) Version() int64 { return 5 }
