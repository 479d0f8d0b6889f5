// Package sqlgen compiles a validated intent into a parameterized SQL
// statement. Every identifier in the generated text comes from the whitelist
// in this package; condition and date values are only ever bound as
// positional parameters.
package sqlgen

import (
	"fmt"
	"strconv"

	"github.com/forecastqa/forecastqa/internal/intent"
)

// Plan is a compiled query: SQL text with $N placeholders plus the values to
// bind, in order.
type Plan struct {
	QueryType intent.QueryType
	SQL       string
	Args      []any
}

// Error marks an internal compiler invariant violation. Given a validated
// intent this should be unreachable; callers log it loudly rather than
// showing the detail to users.
type Error struct {
	Reason string
}

func (e *Error) Error() string {
	return "query compiler: " + e.Reason
}

func compileErrf(format string, args ...any) *Error {
	return &Error{Reason: fmt.Sprintf(format, args...)}
}

// builder accumulates bind values and hands out their placeholders.
type builder struct {
	args []any
}

func (b *builder) bind(value any) string {
	b.args = append(b.args, value)
	return "$" + strconv.Itoa(len(b.args))
}
