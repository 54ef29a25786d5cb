// Package remote defines the backend-neutral contract for the cloud side of
// the inventory. The concrete backend (SQL tables or a document API) is
// chosen once at startup; business logic never branches on it.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/omirall/mobilitat/internal/domain"
)

// Store is the uniform interface over the interchangeable backend drivers.
// Fetches return rows ordered by creation time descending. Batch sizing
// limits of individual backends are hidden inside the drivers.
type Store interface {
	FetchAssets(ctx context.Context) ([]domain.Asset, error)
	UpsertAsset(ctx context.Context, a domain.Asset) error
	DeleteAssets(ctx context.Context, ids []string) error

	FetchReports(ctx context.Context) ([]domain.Report, error)
	UpsertReport(ctx context.Context, r domain.Report) error
	DeleteReports(ctx context.Context, ids []string) error
}

// Error wraps any network, auth, or backend failure so callers can decide
// between surfacing and degrading with errors.As.
type Error struct {
	Backend string
	Op      string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("remote %s: %s: %v", e.Backend, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Defaults supplies values for fields a backend row may be missing. Location
// must be a usable point; the adapter never hands a zero location to callers.
type Defaults struct {
	Location domain.Location
}

// DecodeLocation parses a backend location value, which may arrive as a JSON
// object or as a serialized string depending on the backend, falling back to
// the default point when absent or malformed.
func DecodeLocation(raw []byte, defaults Defaults) domain.Location {
	if len(raw) == 0 || string(raw) == "null" {
		return defaults.Location
	}
	// Doubly-encoded: a JSON string holding a JSON object.
	if raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return defaults.Location
		}
		raw = []byte(inner)
	}
	var loc domain.Location
	if err := json.Unmarshal(raw, &loc); err != nil {
		return defaults.Location
	}
	if !loc.Valid() {
		return defaults.Location
	}
	return loc
}

// NormalizeAsset applies the closed-enum and missing-field defaults shared by
// both drivers. Unknown values are coerced, never rejected.
func NormalizeAsset(a domain.Asset, defaults Defaults) domain.Asset {
	a.State = domain.NormalizeState(string(a.State))
	a.AssetType = domain.NormalizeAssetType(string(a.AssetType))
	if !a.Location.Valid() {
		a.Location = defaults.Location
	}
	now := time.Now().UnixMilli()
	if a.CreatedAt == 0 {
		a.CreatedAt = now
	}
	if a.UpdatedAt < a.CreatedAt {
		a.UpdatedAt = a.CreatedAt
	}
	if a.LastPaintedDate == "" {
		a.LastPaintedDate = time.UnixMilli(a.CreatedAt).UTC().Format("2006-01-02")
	}
	return a
}

// ParseEpochMillis reads a timestamp that backends deliver either as epoch
// millis (number or numeric string) or as RFC 3339 text. Zero means unknown.
func ParseEpochMillis(raw json.RawMessage) int64 {
	if len(raw) == 0 || string(raw) == "null" {
		return 0
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UnixMilli()
	}
	return 0
}
