package types

import (
	"fmt"
	"time"

	"gorm.io/gorm/clause"
)

type CommonFilterOperator string

const (
	CommonFilterOperatorEq        CommonFilterOperator = "eq"
	CommonFilterOperatorNotEq     CommonFilterOperator = "not_eq"
	CommonFilterOperatorLt        CommonFilterOperator = "lt"
	CommonFilterOperatorLte       CommonFilterOperator = "lte"
	CommonFilterOperatorGt        CommonFilterOperator = "gt"
	CommonFilterOperatorGte       CommonFilterOperator = "gte"
	CommonFilterOperatorDateRange CommonFilterOperator = "date_range"
	CommonFilterOperatorRange     CommonFilterOperator = "range"
	CommonFilterOperatorIn        CommonFilterOperator = "in"
)

// CommonFilter is one admin listing condition. Field must be checked against
// a whitelist by the caller; it is written into SQL as a column name.
type CommonFilter struct {
	Field    string               `json:"field"`
	Operator CommonFilterOperator `json:"operator"`
	Values   []any                `json:"values"`
}

// Validate checks the operator and the number of values it needs.
// date_range values must be RFC3339 timestamps.
func (f *CommonFilter) Validate() error {
	need := 1
	switch f.Operator {
	case CommonFilterOperatorEq, CommonFilterOperatorNotEq,
		CommonFilterOperatorLt, CommonFilterOperatorLte,
		CommonFilterOperatorGt, CommonFilterOperatorGte,
		CommonFilterOperatorIn:
	case CommonFilterOperatorRange:
		need = 2
	case CommonFilterOperatorDateRange:
		need = 2
		for _, v := range f.Values {
			if _, err := parseTime(v); err != nil {
				return fmt.Errorf("filter %s: %w", f.Field, err)
			}
		}
	default:
		return fmt.Errorf("filter %s: unknown operator %q", f.Field, f.Operator)
	}
	if len(f.Values) < need {
		return fmt.Errorf("filter %s: operator %s needs %d value(s)", f.Field, f.Operator, need)
	}
	return nil
}

func parseTime(v any) (time.Time, error) {
	s, ok := v.(string)
	if !ok {
		return time.Time{}, fmt.Errorf("expected RFC3339 string, got %T", v)
	}
	return time.Parse(time.RFC3339, s)
}

// Build constructs a GORM expression. Filters that fail Validate build nothing.
func (f *CommonFilter) Build(builder clause.Builder) {
	if f.Validate() != nil {
		return
	}
	col := clause.Column{Name: f.Field}
	value := f.Values[0]

	switch f.Operator {
	case CommonFilterOperatorEq:
		clause.Eq{Column: col, Value: value}.Build(builder)
	case CommonFilterOperatorNotEq:
		clause.Neq{Column: col, Value: value}.Build(builder)
	case CommonFilterOperatorLt:
		clause.Lt{Column: col, Value: value}.Build(builder)
	case CommonFilterOperatorLte:
		clause.Lte{Column: col, Value: value}.Build(builder)
	case CommonFilterOperatorGt:
		clause.Gt{Column: col, Value: value}.Build(builder)
	case CommonFilterOperatorGte:
		clause.Gte{Column: col, Value: value}.Build(builder)
	case CommonFilterOperatorRange:
		clause.And(clause.Gte{Column: col, Value: f.Values[0]}, clause.Lte{Column: col, Value: f.Values[1]}).Build(builder)
	case CommonFilterOperatorDateRange:
		from, _ := parseTime(f.Values[0])
		to, _ := parseTime(f.Values[1])
		clause.And(clause.Gte{Column: col, Value: from}, clause.Lt{Column: col, Value: to}).Build(builder)
	case CommonFilterOperatorIn:
		clause.IN{Column: col, Values: f.Values}.Build(builder)
	}
}
