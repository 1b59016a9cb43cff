// Package remote is the authoritative shared store every device syncs
// against: the device-side Store contract, its HTTP client, and the
// in-memory and Postgres backends the hub serves it from.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/hyperengineering/frontdesk/internal/types"
)

// Store is the remote store as seen by a device.
//
// Upsert inserts rows or, when a row with the same onConflict key exists,
// replaces the supplied columns. Insert inserts rows and silently skips any
// whose onConflict key already exists. rows is a single wire row or a slice
// of them. SelectAll decodes the full collection into dst, a pointer to a
// slice of wire rows.
type Store interface {
	Upsert(ctx context.Context, c types.Collection, onConflict []string, rows any) error
	Insert(ctx context.Context, c types.Collection, onConflict []string, rows any) error
	SelectAll(ctx context.Context, c types.Collection, dst any) error
	Ping(ctx context.Context) error
}

// Record is one decoded row: column name to JSON value.
type Record map[string]any

// Resolution selects what a write does with rows whose conflict key exists.
type Resolution string

const (
	MergeDuplicates  Resolution = "merge-duplicates"
	IgnoreDuplicates Resolution = "ignore-duplicates"
)

// Backend is the hub side of the remote store. A Write is atomic: either
// every record is applied or none is.
type Backend interface {
	Write(ctx context.Context, c types.Collection, onConflict []string, res Resolution, recs []Record) error
	Read(ctx context.Context, c types.Collection) ([]Record, error)
	Ping(ctx context.Context) error
}

// Direct serves Store from an in-process Backend.
type Direct struct {
	backend Backend
}

// NewDirect returns a Store that calls b without a network hop.
func NewDirect(b Backend) *Direct {
	return &Direct{backend: b}
}

func (d *Direct) Upsert(ctx context.Context, c types.Collection, onConflict []string, rows any) error {
	recs, err := ToRecords(rows)
	if err != nil {
		return err
	}
	return d.backend.Write(ctx, c, onConflict, MergeDuplicates, recs)
}

func (d *Direct) Insert(ctx context.Context, c types.Collection, onConflict []string, rows any) error {
	recs, err := ToRecords(rows)
	if err != nil {
		return err
	}
	return d.backend.Write(ctx, c, onConflict, IgnoreDuplicates, recs)
}

func (d *Direct) SelectAll(ctx context.Context, c types.Collection, dst any) error {
	recs, err := d.backend.Read(ctx, c)
	if err != nil {
		return err
	}
	data, err := json.Marshal(recs)
	if err != nil {
		return fmt.Errorf("encode %s: %w", c, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode %s: %w", c, err)
	}
	return nil
}

func (d *Direct) Ping(ctx context.Context) error {
	return d.backend.Ping(ctx)
}

// ToRecords encodes a wire row, or a slice of them, as records.
func ToRecords(rows any) ([]Record, error) {
	data, err := json.Marshal(rows)
	if err != nil {
		return nil, fmt.Errorf("encode rows: %w", err)
	}
	return DecodeRecords(data)
}

// DecodeRecords parses a JSON object or array of objects.
func DecodeRecords(data []byte) ([]Record, error) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var rec Record
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, &Error{Status: 400, Code: CodeInvalidInput, Message: err.Error()}
		}
		return []Record{rec}, nil
	}
	var recs []Record
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, &Error{Status: 400, Code: CodeInvalidInput, Message: err.Error()}
	}
	return recs, nil
}
