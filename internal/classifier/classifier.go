// Package classifier maps JSON values onto the closed set of kinds the differ
// works with, and answers the few questions the diff engines ask about them.
package classifier

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"

	"github.com/mcncl/jsondelta/internal/errors"
	"github.com/mcncl/jsondelta/internal/models"
)

// Classify reports the kind of a JSON value. Parsed documents only ever hold
// json.Number, but native Go numbers are accepted so trees can be built by
// hand. Anything else (byte slices, structs, channels...) is UnsupportedType.
func Classify(v models.JSONValue) (models.Kind, error) {
	switch n := v.(type) {
	case nil:
		return models.Null, nil
	case bool:
		return models.Boolean, nil
	case string:
		return models.String, nil
	case json.Number:
		if isFloatLiteral(string(n)) {
			return models.Float, nil
		}
		return models.Integer, nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return models.Integer, nil
	case float32, float64:
		return models.Float, nil
	case models.JSONObject:
		return models.Object, nil
	case models.JSONArray:
		return models.Array, nil
	case []byte:
		return models.Null, errors.NewUnsupportedTypeError("raw binary values cannot be diffed", "")
	default:
		return models.Null, errors.NewUnsupportedTypeError(fmt.Sprintf("value of type %T", v), "")
	}
}

// IsScalar is true for null, integer, float, boolean and string
func IsScalar(kind models.Kind) bool {
	return kind.IsScalar()
}

// LooksLikeScalarDiff reports whether a diff payload is an object carrying
// both reserved scalar-diff keys
func LooksLikeScalarDiff(v models.JSONValue) bool {
	obj, ok := v.(models.JSONObject)
	if !ok {
		return false
	}
	_, hasOld := obj[models.KeyOld]
	_, hasNew := obj[models.KeyNew]
	return hasOld && hasNew
}

// ScalarEqual compares two scalars of the same kind for exact equality.
// Integers compare by value with arbitrary precision, floats by float64
// equality (no epsilon, wider when a literal overflows float64) and strings
// bytewise.
func ScalarEqual(a, b models.JSONValue) (bool, error) {
	ka, err := Classify(a)
	if err != nil {
		return false, err
	}
	kb, err := Classify(b)
	if err != nil {
		return false, err
	}
	if ka != kb {
		return false, nil
	}

	switch ka {
	case models.Null:
		return true, nil
	case models.Boolean:
		return a.(bool) == b.(bool), nil
	case models.String:
		return a.(string) == b.(string), nil
	case models.Integer:
		ia, err := bigInt(a)
		if err != nil {
			return false, err
		}
		ib, err := bigInt(b)
		if err != nil {
			return false, err
		}
		return ia.Cmp(ib) == 0, nil
	case models.Float:
		fa, err := bigFloat(a)
		if err != nil {
			return false, err
		}
		fb, err := bigFloat(b)
		if err != nil {
			return false, err
		}
		if fa == nil || fb == nil {
			// NaN never equals anything
			return false, nil
		}
		return fa.Cmp(fb) == 0, nil
	default:
		return false, errors.NewUnsupportedTypeError(fmt.Sprintf("%s is not a scalar kind", ka), "")
	}
}

// Index reads the position element of an array diff tuple. It must be a
// non-negative integer.
func Index(v models.JSONValue) (int, error) {
	kind, err := Classify(v)
	if err != nil {
		return 0, err
	}

	switch kind {
	case models.Integer:
		i, err := bigInt(v)
		if err != nil {
			return 0, err
		}
		if i.Sign() < 0 || !i.IsInt64() || i.Int64() > math.MaxInt32 {
			return 0, fmt.Errorf("index %s out of range", i)
		}
		return int(i.Int64()), nil
	case models.Float:
		// Decoders without UseNumber produce float64 for every number
		f, err := float(v)
		if err != nil {
			return 0, err
		}
		if f < 0 || f != math.Trunc(f) || f > math.MaxInt32 {
			return 0, fmt.Errorf("index %v is not a non-negative integer", f)
		}
		return int(f), nil
	default:
		return 0, fmt.Errorf("index must be a number, got %s", kind)
	}
}

func isFloatLiteral(s string) bool {
	return strings.ContainsAny(s, ".eE")
}

func bigInt(v models.JSONValue) (*big.Int, error) {
	switch n := v.(type) {
	case json.Number:
		i, ok := new(big.Int).SetString(string(n), 10)
		if !ok {
			return nil, errors.NewUnsupportedTypeError(fmt.Sprintf("invalid integer literal %q", string(n)), "")
		}
		return i, nil
	case int:
		return big.NewInt(int64(n)), nil
	case int8:
		return big.NewInt(int64(n)), nil
	case int16:
		return big.NewInt(int64(n)), nil
	case int32:
		return big.NewInt(int64(n)), nil
	case int64:
		return big.NewInt(n), nil
	case uint:
		return new(big.Int).SetUint64(uint64(n)), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(n)), nil
	case uint16:
		return new(big.Int).SetUint64(uint64(n)), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(n)), nil
	case uint64:
		return new(big.Int).SetUint64(n), nil
	default:
		return nil, errors.NewUnsupportedTypeError(fmt.Sprintf("%T is not an integer", v), "")
	}
}

// wideFloatPrec is the mantissa precision for literals beyond float64 range
const wideFloatPrec = 256

// bigFloat widens a float for comparison. Values that fit a float64 keep
// float64 precision; literals beyond its range are parsed exactly enough to
// compare. NaN yields nil.
func bigFloat(v models.JSONValue) (*big.Float, error) {
	if n, ok := v.(json.Number); ok {
		f, err := n.Float64()
		if stderrors.Is(err, strconv.ErrRange) {
			wide, _, perr := big.ParseFloat(string(n), 10, wideFloatPrec, big.ToNearestEven)
			if perr != nil {
				return nil, errors.NewUnsupportedTypeError(fmt.Sprintf("invalid float literal %q", string(n)), "")
			}
			return wide, nil
		}
		if err != nil {
			return nil, errors.NewUnsupportedTypeError(fmt.Sprintf("invalid float literal %q", string(n)), "")
		}
		return new(big.Float).SetFloat64(f), nil
	}

	f, err := float(v)
	if err != nil {
		return nil, err
	}
	if math.IsNaN(f) {
		return nil, nil
	}
	return new(big.Float).SetFloat64(f), nil
}

func float(v models.JSONValue) (float64, error) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, errors.NewUnsupportedTypeError(fmt.Sprintf("invalid float literal %q", string(n)), "")
		}
		return f, nil
	case float32:
		return float64(n), nil
	case float64:
		return n, nil
	default:
		return 0, errors.NewUnsupportedTypeError(fmt.Sprintf("%T is not a float", v), "")
	}
}
