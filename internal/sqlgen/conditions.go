package sqlgen

import (
	"fmt"
	"strings"

	"github.com/forecastqa/forecastqa/internal/intent"
)

// columnFor maps a whitelisted field to its column identifier. This is the
// only place field names enter SQL text.
func columnFor(field intent.Field) (string, error) {
	switch field {
	case intent.FieldMinTemp:
		return "min_temp", nil
	case intent.FieldMaxTemp:
		return "max_temp", nil
	case intent.FieldWindSpeed:
		return "wind_speed", nil
	case intent.FieldWindDirection:
		return "wind_direction", nil
	case intent.FieldDescription:
		return "description", nil
	case intent.FieldRainfall:
		return "rainfall", nil
	case intent.FieldVisibility:
		return "visibility", nil
	default:
		return "", compileErrf("field %q is not whitelisted", field)
	}
}

// numericExpr returns a pure numeric expression for an ordered comparison or
// aggregate over the field. Rainfall is text and goes through extraction;
// the other numeric columns are integers already.
func numericExpr(field intent.Field) (string, error) {
	switch field {
	case intent.FieldMinTemp, intent.FieldMaxTemp, intent.FieldWindSpeed:
		return columnFor(field)
	case intent.FieldRainfall:
		return rainfallUpperExpr("rainfall"), nil
	default:
		return "", compileErrf("field %q has no numeric form", field)
	}
}

// rainfallUpperExpr builds the worst-case rainfall amount from the free-text
// column. The feed uses four shapes: empty/"0", a bare number, a dash range
// (upper bound wins), and a comma-joined compound of two ranges with
// qualifier words (the larger upper bound wins). The expression is pure so
// it can nest inside aggregates.
func rainfallUpperExpr(column string) string {
	return fmt.Sprintf(
		"CASE WHEN %[1]s IS NULL OR btrim(%[1]s) IN ('', '0') THEN 0 ELSE GREATEST(%[2]s, %[3]s) END",
		column,
		rainfallPartExpr(column, 1),
		rainfallPartExpr(column, 2),
	)
}

// rainfallPartExpr extracts the upper bound of one comma part: take the text
// after the dash when a range, then the leading number with any qualifier or
// unit suffix dropped. A missing part collapses to 0.
func rainfallPartExpr(column string, part int) string {
	segment := fmt.Sprintf("btrim(split_part(%s, ',', %d))", column, part)
	afterDash := fmt.Sprintf(
		"CASE WHEN strpos(%[1]s, '-') > 0 THEN substr(%[1]s, strpos(%[1]s, '-') + 1) ELSE %[1]s END",
		segment,
	)
	return fmt.Sprintf("COALESCE(CAST(substring(%s from '([0-9]+\\.?[0-9]*)') AS real), 0)", afterDash)
}

// conditionsClause compiles a conjunction of conditions. With negate the
// whole conjunction is wrapped in one NOT, so NOT(A AND B) rather than
// (NOT A) AND (NOT B).
func (b *builder) conditionsClause(conditions []intent.Condition, negate bool) (string, error) {
	if len(conditions) == 0 {
		return "", compileErrf("conditions clause requested with no conditions")
	}
	parts := make([]string, 0, len(conditions))
	for _, condition := range conditions {
		part, err := b.conditionSQL(condition)
		if err != nil {
			return "", err
		}
		parts = append(parts, part)
	}
	joined := strings.Join(parts, " AND ")
	if negate {
		return "NOT (" + joined + ")", nil
	}
	return joined, nil
}

func (b *builder) conditionSQL(condition intent.Condition) (string, error) {
	column, err := columnFor(condition.Field)
	if err != nil {
		return "", err
	}

	switch condition.Operator {
	case intent.OpEq:
		return b.equalitySQL(condition, column, "=")
	case intent.OpNe:
		return b.equalitySQL(condition, column, "<>")
	case intent.OpGt:
		return b.orderedSQL(condition, ">")
	case intent.OpGte:
		return b.orderedSQL(condition, ">=")
	case intent.OpLt:
		return b.orderedSQL(condition, "<")
	case intent.OpLte:
		return b.orderedSQL(condition, "<=")
	case intent.OpContains:
		text, ok := condition.Value.(string)
		if !ok {
			return "", compileErrf("contains on %q without a string value", condition.Field)
		}
		return fmt.Sprintf(`%s ILIKE %s ESCAPE '\'`, column, b.bind("%"+escapeLike(text)+"%")), nil
	case intent.OpIsNull:
		return column + " IS NULL", nil
	case intent.OpIsNotNull:
		return column + " IS NOT NULL", nil
	default:
		return "", compileErrf("operator %q is not whitelisted", condition.Operator)
	}
}

// equalitySQL compares numeric values through the numeric expression and
// everything else against the raw column text.
func (b *builder) equalitySQL(condition intent.Condition, column, symbol string) (string, error) {
	if number, ok := condition.Value.(float64); ok && intent.NumericFields[condition.Field] {
		expr, err := numericExpr(condition.Field)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s %s %s", expr, symbol, b.bind(number)), nil
	}
	if condition.Value == nil {
		return "", compileErrf("%s on %q without a value", symbol, condition.Field)
	}
	return fmt.Sprintf("%s %s %s", column, symbol, b.bind(condition.Value)), nil
}

func (b *builder) orderedSQL(condition intent.Condition, symbol string) (string, error) {
	expr, err := numericExpr(condition.Field)
	if err != nil {
		return "", err
	}
	number, ok := condition.Value.(float64)
	if !ok {
		return "", compileErrf("ordered comparison on %q without a numeric value", condition.Field)
	}
	return fmt.Sprintf("%s %s %s", expr, symbol, b.bind(number)), nil
}

// escapeLike escapes LIKE wildcards in the bound value itself. The SQL text
// only ever contains the placeholder.
func escapeLike(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(value)
}
