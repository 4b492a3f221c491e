package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const DateLayout = "2006-01-02"

// Coerce converts a client-submitted value to the Go representation of
// the column type. Empty strings and nil become nil (SQL NULL).
func Coerce(col Column, value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	if s, ok := value.(string); ok {
		s = strings.TrimSpace(s)
		if s == "" {
			return nil, nil
		}
		value = s
	}

	switch col.Type {
	case TypeText:
		switch v := value.(type) {
		case string:
			return v, nil
		case json.Number:
			return v.String(), nil
		case float64, int64, int, bool:
			return fmt.Sprint(v), nil
		}
	case TypeInteger:
		d, err := toDecimal(value)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", col.Name, err)
		}
		if !d.Equal(d.Truncate(0)) {
			return nil, fmt.Errorf("%s: expected a whole number", col.Name)
		}
		return d.IntPart(), nil
	case TypeNumeric:
		d, err := toDecimal(value)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", col.Name, err)
		}
		f, _ := d.Float64()
		return f, nil
	case TypeBool:
		switch v := value.(type) {
		case bool:
			return v, nil
		case string:
			switch strings.ToLower(v) {
			case "true", "yes", "y", "1":
				return true, nil
			case "false", "no", "n", "0":
				return false, nil
			}
		case json.Number:
			switch v.String() {
			case "1":
				return true, nil
			case "0":
				return false, nil
			}
		case float64:
			if v == 1 || v == 0 {
				return v == 1, nil
			}
		}
		return nil, fmt.Errorf("%s: expected a boolean", col.Name)
	case TypeDate:
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("%s: expected a date", col.Name)
		}
		if len(s) > len(DateLayout) {
			// accept full timestamps echoed back from a previous read
			s = s[:len(DateLayout)]
		}
		if _, err := time.Parse(DateLayout, s); err != nil {
			return nil, fmt.Errorf("%s: expected YYYY-MM-DD", col.Name)
		}
		return s, nil
	}
	return nil, fmt.Errorf("%s: unsupported value %T", col.Name, value)
}

func toDecimal(value any) (decimal.Decimal, error) {
	switch v := value.(type) {
	case json.Number:
		return decimal.NewFromString(v.String())
	case string:
		return decimal.NewFromString(strings.ReplaceAll(v, ",", ""))
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return decimal.Zero, fmt.Errorf("expected a finite number")
		}
		return decimal.NewFromFloat(v), nil
	case int64:
		return decimal.NewFromInt(v), nil
	case int:
		return decimal.NewFromInt(int64(v)), nil
	}
	return decimal.Zero, fmt.Errorf("expected a number")
}

// NormalizeStored maps a database value onto the Row value set using the
// column descriptor: numeric text becomes float64, dates become
// YYYY-MM-DD strings and byte slices become strings.
func NormalizeStored(name string, value any) any {
	switch v := value.(type) {
	case nil:
		return nil
	case []byte:
		value = string(v)
	case time.Time:
		return v.UTC().Format(DateLayout)
	case int32:
		return int64(v)
	case int:
		return int64(v)
	case float32:
		return float64(v)
	}

	col, ok := columnIndex[name]
	if !ok {
		return value
	}
	s, isString := value.(string)
	if !isString {
		if col.Type == TypeInteger {
			if f, ok := value.(float64); ok {
				return int64(math.Round(f))
			}
		}
		return value
	}
	switch col.Type {
	case TypeNumeric:
		if d, err := decimal.NewFromString(s); err == nil {
			f, _ := d.Float64()
			return f
		}
	case TypeInteger:
		if d, err := decimal.NewFromString(s); err == nil {
			return d.Round(0).IntPart()
		}
	}
	return s
}

// RoundHalfUp rounds to the given number of decimal places the way the
// database ROUND function does for numeric values.
func RoundHalfUp(value float64, places int32) float64 {
	f, _ := decimal.NewFromFloat(value).Round(places).Float64()
	return f
}
