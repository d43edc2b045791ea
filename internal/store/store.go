package store

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// newDocumentID generates a driver-assigned document id.
func newDocumentID() string {
	return uuid.NewString()
}

// Sentinel errors surfaced by every driver. Callers match with errors.Is.
var (
	ErrNotFound    = errors.New("document not found")
	ErrUnavailable = errors.New("store unavailable")
	ErrConstraint  = errors.New("constraint violation")
	ErrUnsupported = errors.New("unsupported query option")
)

// Op is a filter operator.
type Op string

const (
	OpEq  Op = "=="
	OpLt  Op = "<"
	OpLte Op = "<="
	OpGt  Op = ">"
	OpGte Op = ">="
	OpIn  Op = "in"
)

// Filter is a single (field, operator, value) predicate. A filter slice is
// evaluated as a conjunction.
type Filter struct {
	Field string
	Op    Op
	Value any
}

// Where is shorthand for building a Filter.
func Where(field string, op Op, value any) Filter {
	return Filter{Field: field, Op: op, Value: value}
}

// Document is a query result row.
type Document struct {
	ID   string
	Data map[string]any
}

type queryConfig struct {
	limit     int
	orderBy   string
	desc      bool
	hasOrder  bool
	hasLimit  bool
}

// QueryOption adjusts a Query call.
type QueryOption func(*queryConfig)

// WithLimit caps the number of returned documents.
func WithLimit(n int) QueryOption {
	return func(c *queryConfig) {
		c.limit = n
		c.hasLimit = true
	}
}

// WithOrderBy orders results by a field. Drivers that cannot honor ordering
// must fail with ErrUnsupported rather than silently reorder.
func WithOrderBy(field string, desc bool) QueryOption {
	return func(c *queryConfig) {
		c.orderBy = field
		c.desc = desc
		c.hasOrder = true
	}
}

// Store is the document-store port. Collections are team-scoped by name
// except the global ones; documents are open-schema maps and writes must
// preserve unknown keys.
type Store interface {
	// Create inserts a document. Empty id asks the driver to generate one.
	// An existing id yields ErrConstraint.
	Create(ctx context.Context, coll string, data map[string]any, id string) (string, error)
	// Get returns the document data or ErrNotFound.
	Get(ctx context.Context, coll, id string) (map[string]any, error)
	// Update merges patch into an existing document, preserving keys not
	// named in the patch. Missing documents yield ErrNotFound.
	Update(ctx context.Context, coll, id string, patch map[string]any) error
	// Delete removes a document or returns ErrNotFound.
	Delete(ctx context.Context, coll, id string) error
	// Query returns documents matching all filters.
	Query(ctx context.Context, coll string, filters []Filter, opts ...QueryOption) ([]Document, error)
	// Collections lists known collection names.
	Collections(ctx context.Context) ([]string, error)
	// Ping verifies connectivity.
	Ping(ctx context.Context) error
	Close() error
}

// Global collection names.
const (
	TeamsCollection         = "kickai_teams"
	LegacyInvitesCollection = "kickai_invite_links"
	TestMarkersCollection   = "kickai_test_markers"
)

// PlayersCollection names the team-scoped players collection.
func PlayersCollection(teamID string) string {
	return "kickai_" + teamID + "_players"
}

// MembersCollection names the team-scoped team-members collection.
func MembersCollection(teamID string) string {
	return "kickai_" + teamID + "_team_members"
}

// InvitesCollection names the team-scoped invite-links collection.
func InvitesCollection(teamID string) string {
	return "kickai_" + teamID + "_invite_links"
}

// ActivationLogsCollection names the team-scoped activation-log collection.
func ActivationLogsCollection(teamID string) string {
	return "kickai_" + teamID + "_activation_logs"
}

// MatchesCollection names the team-scoped matches collection.
func MatchesCollection(teamID string) string {
	return "kickai_" + teamID + "_matches"
}

// AttendanceCollection names the team-scoped attendance collection.
func AttendanceCollection(teamID string) string {
	return "kickai_" + teamID + "_attendance"
}

// TeamFromCollection extracts the team id from a team-scoped collection name,
// returning "" for global collections.
func TeamFromCollection(coll string) string {
	if !strings.HasPrefix(coll, "kickai_") {
		return ""
	}
	rest := strings.TrimPrefix(coll, "kickai_")
	for _, suffix := range []string{"_players", "_team_members", "_invite_links", "_activation_logs", "_matches", "_attendance"} {
		if strings.HasSuffix(rest, suffix) {
			return strings.TrimSuffix(rest, suffix)
		}
	}
	return ""
}

// matchAll evaluates the filter conjunction against a document.
func matchAll(doc map[string]any, filters []Filter) bool {
	for _, f := range filters {
		if !matchOne(doc, f) {
			return false
		}
	}
	return true
}

func matchOne(doc map[string]any, f Filter) bool {
	have, ok := doc[f.Field]
	if !ok {
		return false
	}
	switch f.Op {
	case OpEq:
		return compareValues(have, f.Value) == 0
	case OpLt:
		return comparableValues(have, f.Value) && compareValues(have, f.Value) < 0
	case OpLte:
		return comparableValues(have, f.Value) && compareValues(have, f.Value) <= 0
	case OpGt:
		return comparableValues(have, f.Value) && compareValues(have, f.Value) > 0
	case OpGte:
		return comparableValues(have, f.Value) && compareValues(have, f.Value) >= 0
	case OpIn:
		return matchIn(have, f.Value)
	default:
		return false
	}
}

func matchIn(have, set any) bool {
	switch s := set.(type) {
	case []any:
		for _, v := range s {
			if compareValues(have, v) == 0 {
				return true
			}
		}
	case []string:
		for _, v := range s {
			if compareValues(have, v) == 0 {
				return true
			}
		}
	case []int64:
		for _, v := range s {
			if compareValues(have, v) == 0 {
				return true
			}
		}
	}
	return false
}

// compareValues orders two loosely typed document values. Numbers compare
// numerically across int/int64/float64; strings lexically; times by instant.
// Incomparable pairs report as unequal (non-zero).
func compareValues(a, b any) int {
	if na, aok := asFloat(a); aok {
		if nb, bok := asFloat(b); bok {
			switch {
			case na < nb:
				return -1
			case na > nb:
				return 1
			default:
				return 0
			}
		}
	}
	if sa, aok := a.(string); aok {
		if sb, bok := b.(string); bok {
			return strings.Compare(sa, sb)
		}
	}
	if ta, aok := asTime(a); aok {
		if tb, bok := asTime(b); bok {
			switch {
			case ta.Before(tb):
				return -1
			case ta.After(tb):
				return 1
			default:
				return 0
			}
		}
	}
	if ba, aok := a.(bool); aok {
		if bb, bok := b.(bool); bok && ba == bb {
			return 0
		}
	}
	return -1
}

func comparableValues(a, b any) bool {
	if _, ok := asFloat(a); ok {
		_, ok2 := asFloat(b)
		return ok2
	}
	if _, ok := a.(string); ok {
		_, ok2 := b.(string)
		return ok2
	}
	if _, ok := asTime(a); ok {
		_, ok2 := asTime(b)
		return ok2
	}
	return false
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	default:
		return 0, false
	}
}

func asTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		if parsed, err := time.Parse(time.RFC3339, t); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}

// sortDocs orders documents by a field for drivers that evaluate queries
// in-process.
func sortDocs(docs []Document, field string, desc bool) {
	sort.SliceStable(docs, func(i, j int) bool {
		less := compareValues(docs[i].Data[field], docs[j].Data[field]) < 0
		if desc {
			return !less
		}
		return less
	})
}
