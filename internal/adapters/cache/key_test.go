package cache_test

import (
	"encoding/json"
	"testing"

	"github.com/Amund211/beacon/internal/adapters/cache"
	"github.com/stretchr/testify/require"
)

type stringer struct{}

func (stringer) String() string {
	return "stringer-value"
}

func TestBuildKey(t *testing.T) {
	t.Parallel()

	t.Run("parameter order does not matter", func(t *testing.T) {
		t.Parallel()

		// Map iteration order is random, so build the same map many times
		for range 50 {
			a := cache.Params{}
			b := cache.Params{}
			for _, name := range []string{"a", "b", "c", "d", "e"} {
				a[name] = name + "-value"
			}
			for _, name := range []string{"e", "d", "c", "b", "a"} {
				b[name] = name + "-value"
			}
			require.Equal(t, cache.BuildKey("/dash", a), cache.BuildKey("/dash", b))
		}

		require.Equal(t,
			cache.BuildKey("/books", cache.Params{"a": 1, "b": 2}),
			cache.BuildKey("/books", cache.Params{"b": 2, "a": 1}),
		)
	})

	t.Run("formatting", func(t *testing.T) {
		t.Parallel()

		cases := []struct {
			name     string
			endpoint string
			params   cache.Params
			want     cache.Key
		}{
			{
				name:     "no params",
				endpoint: "/dash",
				params:   nil,
				want:     "/dash",
			},
			{
				name:     "empty params",
				endpoint: "/dash",
				params:   cache.Params{},
				want:     "/dash",
			},
			{
				name:     "sorted",
				endpoint: "/a",
				params:   cache.Params{"y": "2", "x": 1},
				want:     "/a?x=1&y=2",
			},
			{
				name:     "scalars",
				endpoint: "/a",
				params: cache.Params{
					"bool":   true,
					"float":  1.5,
					"int64":  int64(-3),
					"uint8":  uint8(7),
					"string": "hello world",
				},
				want: "/a?bool=true&float=1.5&int64=-3&string=hello+world&uint8=7",
			},
			{
				name:     "large floats are not in exponent form",
				endpoint: "/users",
				params:   cache.Params{"id": float64(1234567), "big": float64(1e21), "small": 0.000001},
				want:     "/users?big=1000000000000000000000&id=1234567&small=0.000001",
			},
			{
				name:     "json numbers keep their text",
				endpoint: "/users",
				params:   cache.Params{"id": json.Number("9007199254740993")},
				want:     "/users?id=9007199254740993",
			},
			{
				name:     "nil renders bare name",
				endpoint: "/a",
				params:   cache.Params{"x": nil, "y": ""},
				want:     "/a?x&y=",
			},
			{
				name:     "escaping",
				endpoint: "/a",
				params:   cache.Params{"q": "1&b=2"},
				want:     "/a?q=1%26b%3D2",
			},
			{
				name:     "stringer",
				endpoint: "/a",
				params:   cache.Params{"s": stringer{}},
				want:     "/a?s=stringer-value",
			},
			{
				name:     "unsupported types are coerced",
				endpoint: "/a",
				params:   cache.Params{"list": []int{1, 2}},
				want:     "/a?list=%5B1+2%5D",
			},
		}

		for _, c := range cases {
			t.Run(c.name, func(t *testing.T) {
				t.Parallel()
				require.Equal(t, c.want, cache.BuildKey(c.endpoint, c.params))
			})
		}
	})

	t.Run("distinct requests have distinct keys", func(t *testing.T) {
		t.Parallel()

		require.NotEqual(t, cache.BuildKey("/a", cache.Params{"a": 1}), cache.BuildKey("/a", cache.Params{"a": 2}))
		require.NotEqual(t, cache.BuildKey("/a", cache.Params{"a": 1}), cache.BuildKey("/b", cache.Params{"a": 1}))
		require.NotEqual(t, cache.BuildKey("/a", cache.Params{"a": nil}), cache.BuildKey("/a", cache.Params{"a": ""}))
		require.Equal(t, cache.BuildKey("/a", cache.Params{"a": "1234567"}), cache.BuildKey("/a", cache.Params{"a": float64(1234567)}))
		require.NotEqual(t,
			cache.BuildKey("/a", cache.Params{"a": "1&b=2"}),
			cache.BuildKey("/a", cache.Params{"a": "1", "b": "2"}),
		)
	})
}

func TestParamsValues(t *testing.T) {
	t.Parallel()

	values := cache.Params{
		"page":  2,
		"lang":  "en",
		"draft": false,
		"skip":  nil,
	}.Values()

	require.Equal(t, "draft=false&lang=en&page=2", values.Encode())
	require.Empty(t, cache.Params{}.Values())
}
