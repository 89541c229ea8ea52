package cache

import (
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"
)

// Key identifies a logical request: an endpoint plus its canonicalized parameters
type Key string

type Params map[string]any

// BuildKey derives the canonical key for a request to endpoint with the given params.
//
// Parameter names are sorted, so the insertion order of params never affects the key.
// Names and values are query-escaped to keep distinct parameter sets from colliding.
// endpoint is written as-is and must not contain '?': callers validate it before building a key.
func BuildKey(endpoint string, params Params) Key {
	if len(params) == 0 {
		return Key(endpoint)
	}

	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	slices.Sort(names)

	var b strings.Builder
	b.WriteString(endpoint)
	b.WriteByte('?')
	for i, name := range names {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(name))

		value := params[name]
		if value == nil {
			// Absent value: bare name, distinct from an empty string
			continue
		}
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(formatParam(value)))
	}

	return Key(b.String())
}

func formatParam(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int8:
		return strconv.FormatInt(int64(v), 10)
	case int16:
		return strconv.FormatInt(int64(v), 10)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint:
		return strconv.FormatUint(uint64(v), 10)
	case uint8:
		return strconv.FormatUint(uint64(v), 10)
	case uint16:
		return strconv.FormatUint(uint64(v), 10)
	case uint32:
		return strconv.FormatUint(uint64(v), 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case float64:
		// Never exponent form, so 1234567.0 renders like the integer 1234567
		return strconv.FormatFloat(v, 'f', -1, 64)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// Values renders params as a query, formatting each value like BuildKey does.
// Parameters with a nil value are left out.
func (p Params) Values() url.Values {
	values := make(url.Values, len(p))
	for name, value := range p {
		if value == nil {
			continue
		}
		values.Set(name, formatParam(value))
	}
	return values
}
