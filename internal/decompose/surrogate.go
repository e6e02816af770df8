package decompose

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"normalizer/internal/dataset"
	"normalizer/internal/schema"
)

// SurrogateStrategy selects how synthesized Dim keys are valued.
type SurrogateStrategy int

const (
	// SurrogateSequential numbers rows 1..n in dedup order. Repeated runs
	// over the same data yield identical keys.
	SurrogateSequential SurrogateStrategy = iota
	// SurrogateToken assigns random UUIDv4 strings. Keys differ between
	// runs; row counts and non-key content do not.
	SurrogateToken
)

func (s SurrogateStrategy) String() string {
	if s == SurrogateToken {
		return "token"
	}
	return "sequential"
}

// ParseSurrogate maps "sequential" / "token" (also "uuid") to a strategy.
func ParseSurrogate(s string) (SurrogateStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "sequential", "seq", "int":
		return SurrogateSequential, nil
	case "token", "uuid":
		return SurrogateToken, nil
	default:
		return 0, fmt.Errorf("unknown surrogate strategy %q (want sequential|token)", s)
	}
}

func (s SurrogateStrategy) values(n int) ([]any, dataset.Kind) {
	out := make([]any, n)
	if s == SurrogateToken {
		for i := range out {
			out[i] = uuid.NewString()
		}
		return out, dataset.KindString
	}
	for i := range out {
		out[i] = int64(i + 1)
	}
	return out, dataset.KindInteger
}

// SurrogateName is the key column synthesized for a Dim table:
// "Dim_Customer" -> "customer_id".
func SurrogateName(table string) string {
	return strings.ToLower(schema.BaseName(table)) + "_id"
}

// looksLikeKey reports whether a column name already reads as a surrogate
// key.
func looksLikeKey(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), "_id")
}
