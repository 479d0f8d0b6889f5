package intent

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	maxConditions = 5
	maxFields     = 3
	minLimit      = 1
	maxLimit      = 10
	defaultLimit  = 5

	dateLayout = "2006-01-02"
)

// ValidationError describes why raw model output was rejected. The message
// is safe to log; it never echoes raw model text back to the user.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid intent: " + e.Reason
}

func errf(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

type rawIntent struct {
	QueryType    string         `json:"query_type"`
	Conditions   []rawCondition `json:"conditions"`
	DateRange    *rawDateRange  `json:"date_range"`
	Fields       []string       `json:"fields"`
	TargetDate   string         `json:"target_date"`
	CompareDates []string       `json:"compare_dates"`
	Limit        *int           `json:"limit"`
	Extreme      string         `json:"extreme"`
}

type rawCondition struct {
	Field    string          `json:"field"`
	Operator string          `json:"operator"`
	Value    json.RawMessage `json:"value"`
}

type rawDateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Validate checks arbitrary model JSON against the whitelist and the
// per-type required-field contracts, producing either a trusted Intent or a
// ValidationError.
func Validate(raw json.RawMessage) (Intent, error) {
	var payload rawIntent
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&payload); err != nil {
		return Intent{}, errf("not a recognized intent object: %v", err)
	}

	queryType := QueryType(strings.TrimSpace(payload.QueryType))
	if !knownQueryType(queryType) {
		return Intent{}, errf("unknown query_type %q", payload.QueryType)
	}

	out := Intent{QueryType: queryType}

	if len(payload.Conditions) > maxConditions {
		return Intent{}, errf("too many conditions: %d (max %d)", len(payload.Conditions), maxConditions)
	}
	for i, rc := range payload.Conditions {
		condition, err := validateCondition(rc)
		if err != nil {
			return Intent{}, errf("condition %d: %v", i, err)
		}
		out.Conditions = append(out.Conditions, condition)
	}

	if payload.DateRange != nil {
		dateRange, err := validateDateRange(*payload.DateRange)
		if err != nil {
			return Intent{}, err
		}
		out.DateRange = &dateRange
	}

	if len(payload.Fields) > maxFields {
		return Intent{}, errf("too many fields: %d (max %d)", len(payload.Fields), maxFields)
	}
	for _, name := range payload.Fields {
		field := Field(strings.TrimSpace(name))
		if !knownField(field) {
			return Intent{}, errf("unknown field %q", name)
		}
		out.Fields = append(out.Fields, field)
	}

	if payload.TargetDate != "" {
		bound, err := parseBound(payload.TargetDate)
		if err != nil {
			return Intent{}, errf("target_date: %v", err)
		}
		if bound.Kind != BoundDate && bound.Kind != BoundToday {
			return Intent{}, errf("target_date must be a date or %q", "today")
		}
		out.TargetDate = bound
	}

	if len(payload.CompareDates) > 0 {
		if len(payload.CompareDates) != 2 {
			return Intent{}, errf("compare_dates must contain exactly 2 dates, got %d", len(payload.CompareDates))
		}
		for i, text := range payload.CompareDates {
			date, err := parseISODate(text)
			if err != nil {
				return Intent{}, errf("compare_dates[%d]: %v", i, err)
			}
			out.CompareDates[i] = date
		}
		if out.CompareDates[0].Equal(out.CompareDates[1]) {
			return Intent{}, errf("compare_dates must be two distinct dates")
		}
	}

	if payload.Limit != nil {
		if *payload.Limit < minLimit || *payload.Limit > maxLimit {
			return Intent{}, errf("limit %d out of range %d-%d", *payload.Limit, minLimit, maxLimit)
		}
		out.Limit = *payload.Limit
	}

	if payload.Extreme != "" {
		extreme := Extreme(strings.TrimSpace(payload.Extreme))
		if extreme != ExtremeMax && extreme != ExtremeMin {
			return Intent{}, errf("extreme must be %q or %q", ExtremeMax, ExtremeMin)
		}
		out.Extreme = extreme
	}

	if err := checkRequiredFields(&out); err != nil {
		return Intent{}, err
	}
	return out, nil
}

func validateCondition(rc rawCondition) (Condition, error) {
	field := Field(strings.TrimSpace(rc.Field))
	if !knownField(field) {
		return Condition{}, fmt.Errorf("unknown field %q", rc.Field)
	}
	operator := Operator(strings.TrimSpace(rc.Operator))
	if !knownOperator(operator) {
		return Condition{}, fmt.Errorf("unknown operator %q", rc.Operator)
	}

	value, isNull, err := decodeConditionValue(rc.Value)
	if err != nil {
		return Condition{}, err
	}

	switch {
	case OrderedOperators[operator]:
		if !NumericFields[field] {
			return Condition{}, fmt.Errorf("operator %q requires a numeric field, %q is not", operator, field)
		}
		number, ok := value.(float64)
		if !ok {
			return Condition{}, fmt.Errorf("operator %q requires a numeric value", operator)
		}
		return Condition{Field: field, Operator: operator, Value: number}, nil
	case operator == OpContains:
		text, ok := value.(string)
		if !ok {
			return Condition{}, fmt.Errorf("operator %q requires a string value", operator)
		}
		return Condition{Field: field, Operator: operator, Value: text}, nil
	case operator == OpIsNull || operator == OpIsNotNull:
		if !isNull {
			return Condition{}, fmt.Errorf("operator %q requires a literal null value", operator)
		}
		return Condition{Field: field, Operator: operator, Value: nil}, nil
	default: // eq, ne
		if isNull || value == nil {
			return Condition{}, fmt.Errorf("operator %q requires a string or numeric value", operator)
		}
		return Condition{Field: field, Operator: operator, Value: value}, nil
	}
}

// decodeConditionValue accepts a JSON string, number, or literal null.
// The second return distinguishes an explicit null from an absent value.
func decodeConditionValue(raw json.RawMessage) (any, bool, error) {
	trimmed := strings.TrimSpace(string(raw))
	switch {
	case trimmed == "":
		return nil, false, nil
	case trimmed == "null":
		return nil, true, nil
	case strings.HasPrefix(trimmed, `"`):
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return nil, false, fmt.Errorf("malformed string value")
		}
		return text, false, nil
	default:
		number, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return nil, false, fmt.Errorf("value must be a string, number, or null")
		}
		return number, false, nil
	}
}

func validateDateRange(raw rawDateRange) (DateRange, error) {
	start, err := parseBound(raw.Start)
	if err != nil {
		return DateRange{}, errf("date_range.start: %v", err)
	}
	end, err := parseBound(raw.End)
	if err != nil {
		return DateRange{}, errf("date_range.end: %v", err)
	}
	if start.Kind == BoundDate && end.Kind == BoundDate && start.Date.After(end.Date) {
		return DateRange{}, errf("date_range start %s is after end %s",
			start.Date.Format(dateLayout), end.Date.Format(dateLayout))
	}
	return DateRange{Start: start, End: end}, nil
}

func parseBound(text string) (Bound, error) {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "":
		return Bound{Kind: BoundNone}, nil
	case "today":
		return Bound{Kind: BoundToday}, nil
	case "first_record":
		return Bound{Kind: BoundFirstRecord}, nil
	case "last_record":
		return Bound{Kind: BoundLastRecord}, nil
	}
	date, err := parseISODate(text)
	if err != nil {
		return Bound{}, err
	}
	return Bound{Kind: BoundDate, Date: date}, nil
}

func parseISODate(text string) (time.Time, error) {
	date, err := time.Parse(dateLayout, strings.TrimSpace(text))
	if err != nil {
		return time.Time{}, fmt.Errorf("%q is not an ISO date or date keyword", text)
	}
	return date, nil
}

// checkRequiredFields enforces the per-type contract. Every query type is
// listed; an unlisted type is a programming error surfaced as a validation
// failure rather than a panic.
func checkRequiredFields(in *Intent) error {
	switch in.QueryType {
	case QueryForecastForDate:
		if in.TargetDate.Kind == BoundNone {
			return errf("%s requires target_date", in.QueryType)
		}
	case QueryCurrentConditions, QueryDataRange:
		// No required fields.
	case QueryCompareDates:
		if in.CompareDates[0].IsZero() || in.CompareDates[1].IsZero() {
			return errf("%s requires compare_dates", in.QueryType)
		}
	case QueryExtremeValue:
		if in.DateRange == nil {
			return errf("%s requires date_range", in.QueryType)
		}
		if err := requireNumericFields(in); err != nil {
			return err
		}
		if in.Extreme == "" {
			return errf("%s requires extreme", in.QueryType)
		}
	case QueryMaxStreak, QueryCountDays:
		if in.DateRange == nil {
			return errf("%s requires date_range", in.QueryType)
		}
		if len(in.Conditions) == 0 {
			return errf("%s requires at least one condition", in.QueryType)
		}
	case QueryLastDayWith, QueryLastDayWithout, QueryFirstDayWith:
		if len(in.Conditions) == 0 {
			return errf("%s requires at least one condition", in.QueryType)
		}
	case QueryListDays:
		if len(in.Conditions) == 0 {
			return errf("%s requires at least one condition", in.QueryType)
		}
		if in.Limit == 0 {
			in.Limit = defaultLimit
		}
	case QueryAverageValue:
		if in.DateRange == nil {
			return errf("%s requires date_range", in.QueryType)
		}
		if err := requireNumericFields(in); err != nil {
			return err
		}
	default:
		return errf("unknown query_type %q", in.QueryType)
	}
	return nil
}

func requireNumericFields(in *Intent) error {
	if len(in.Fields) == 0 {
		return errf("%s requires fields", in.QueryType)
	}
	for _, field := range in.Fields {
		if !NumericFields[field] {
			return errf("%s requires numeric fields, %q is not", in.QueryType, field)
		}
	}
	return nil
}

func knownQueryType(q QueryType) bool {
	for _, candidate := range QueryTypes {
		if candidate == q {
			return true
		}
	}
	return false
}

func knownField(f Field) bool {
	for _, candidate := range Fields {
		if candidate == f {
			return true
		}
	}
	return false
}

func knownOperator(o Operator) bool {
	for _, candidate := range Operators {
		if candidate == o {
			return true
		}
	}
	return false
}
