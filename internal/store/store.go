// Package store defines the document-store contract used by the loader and
// the store-side audits, in terms that both the MongoDB adapter and the
// in-memory adapter can evaluate.
package store

import (
	"context"

	"github.com/couchcryptid/weather-station-etl/internal/domain"
)

// Filter selects documents. A zero Filter matches every document.
type Filter struct {
	// Field restricts the comparison below to one document field.
	Field string
	// Below matches documents whose numeric Field is strictly less than *Below.
	Below *float64
	// Above matches documents whose numeric Field is strictly greater than *Above.
	Above *float64
	// Any matches documents satisfied by at least one of the nested filters.
	// When set, Field, Below and Above are ignored.
	Any []Filter
}

// OutsideRange matches documents whose numeric field is below min or above
// max. Null and missing values never match.
func OutsideRange(field string, minimum, maximum float64) Filter {
	return Filter{Field: field, Below: &minimum, Above: &maximum}
}

// AnyOf matches documents satisfied by at least one filter.
func AnyOf(filters ...Filter) Filter {
	return Filter{Any: filters}
}

// Condition is a per-document predicate evaluated on one field.
type Condition string

const (
	// IsNull holds when the field is null or missing.
	IsNull Condition = "null"
	// IsText holds when the field is stored as a string.
	IsText Condition = "text"
	// IsNonNumeric holds when the field is present, not null, and not a number.
	IsNonNumeric Condition = "non_numeric"
)

// Sum asks the store to count documents where Condition holds for Field,
// reported under Name.
type Sum struct {
	Name      string
	Field     string
	Condition Condition
}

// Store is a short-lived handle on the target collection.
type Store interface {
	// DeleteAll removes every document in the collection.
	DeleteAll(ctx context.Context) (int64, error)
	// InsertMany writes one document per observation and returns how many were written.
	InsertMany(ctx context.Context, obs []domain.Observation) (int, error)
	// Count returns the number of documents matching f.
	Count(ctx context.Context, f Filter) (int64, error)
	// SumConditions evaluates every Sum in a single grouping pass over the collection.
	SumConditions(ctx context.Context, sums []Sum) (map[string]int64, error)
	// Distinct returns the distinct string values of field. Documents where
	// the field is absent or not a string are skipped.
	Distinct(ctx context.Context, field string) ([]string, error)
	// Close releases the connection.
	Close(ctx context.Context) error
}

// Opener connects to the store and verifies liveness within a bounded time.
// Each pipeline phase that needs the store opens and closes its own handle.
type Opener interface {
	Open(ctx context.Context) (Store, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(ctx context.Context) (Store, error)

// Open calls f.
func (f OpenerFunc) Open(ctx context.Context) (Store, error) { return f(ctx) }
