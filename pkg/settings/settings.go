package settings

import (
	"encoding/json"
	"net/url"
	"sort"
	"strconv"
	"sync"

	"github.com/huandu/go-clone"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	KeyTemperature         = "temperature"
	KeyTopP                = "top_p"
	KeyMaxCompletionTokens = "max_completion_tokens"
)

var floatKeys = map[string]bool{
	KeyTemperature: true,
	KeyTopP:        true,
}

var intKeys = map[string]bool{
	KeyMaxCompletionTokens: true,
}

// Pair is one raw key/value parameter, in the order it appeared.
type Pair struct {
	Key   string
	Value string
}

// Settings is the read-only model configuration sent along with every request.
// Values are float64 for temperature and top_p, int for max_completion_tokens
// and string otherwise. Numeric values that do not parse stay strings.
type Settings struct {
	values map[string]interface{}
}

func Empty() *Settings {
	return &Settings{values: map[string]interface{}{}}
}

// FromPairs resolves the pairs in order; the last occurrence of a key wins.
func FromPairs(pairs []Pair) *Settings {
	values := map[string]interface{}{}
	for _, p := range pairs {
		values[p.Key] = resolve(p.Key, p.Value)
	}
	return &Settings{values: values}
}

func FromValues(v url.Values) *Settings {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var pairs []Pair
	for _, k := range keys {
		for _, value := range v[k] {
			pairs = append(pairs, Pair{Key: k, Value: value})
		}
	}
	return FromPairs(pairs)
}

// FromQuery parses a URL query string such as "temperature=0.7&top_p=0.9".
// A leading "?" is accepted. Only malformed query syntax is an error.
func FromQuery(query string) (*Settings, error) {
	if len(query) > 0 && query[0] == '?' {
		query = query[1:]
	}
	v, err := url.ParseQuery(query)
	if err != nil {
		return nil, errors.Wrapf(err, "could not parse settings query %q", query)
	}
	return FromValues(v), nil
}

func resolve(key, value string) interface{} {
	switch {
	case floatKeys[key]:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			log.Debug().Str("key", key).Str("value", value).Msg("keeping unparseable float setting as string")
			return value
		}
		return f
	case intKeys[key]:
		i, err := strconv.Atoi(value)
		if err != nil {
			log.Debug().Str("key", key).Str("value", value).Msg("keeping unparseable integer setting as string")
			return value
		}
		return i
	default:
		return value
	}
}

func (s *Settings) Get(key string) (interface{}, bool) {
	if s == nil {
		return nil, false
	}
	v, ok := s.values[key]
	return v, ok
}

// Float returns the value only if it was resolved to a float64.
func (s *Settings) Float(key string) (float64, bool) {
	v, ok := s.Get(key)
	if !ok {
		return 0, false
	}
	f, ok := v.(float64)
	return f, ok
}

// Int returns the value only if it was resolved to an int.
func (s *Settings) Int(key string) (int, bool) {
	v, ok := s.Get(key)
	if !ok {
		return 0, false
	}
	i, ok := v.(int)
	return i, ok
}

func (s *Settings) String(key string) (string, bool) {
	v, ok := s.Get(key)
	if !ok {
		return "", false
	}
	str, ok := v.(string)
	return str, ok
}

func (s *Settings) Keys() []string {
	if s == nil {
		return nil
	}
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (s *Settings) Len() int {
	if s == nil {
		return 0
	}
	return len(s.values)
}

// Map returns a copy of the values; modifying it does not affect s.
func (s *Settings) Map() map[string]interface{} {
	if s == nil {
		return map[string]interface{}{}
	}
	return clone.Clone(s.values).(map[string]interface{})
}

func (s *Settings) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Map())
}

func (s *Settings) UnmarshalJSON(b []byte) error {
	var raw map[string]interface{}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	s.values = map[string]interface{}{}
	for k, v := range raw {
		// JSON numbers decode as float64; restore the integer keys.
		if f, ok := v.(float64); ok && intKeys[k] && f == float64(int(f)) {
			s.values[k] = int(f)
			continue
		}
		s.values[k] = v
	}
	return nil
}

var (
	globalOnce     sync.Once
	globalSettings = Empty()
)

// Init sets the process-wide settings. Only the first call has an effect.
func Init(s *Settings) {
	globalOnce.Do(func() {
		if s != nil {
			globalSettings = s
		}
		log.Debug().Strs("keys", globalSettings.Keys()).Msg("initialized settings")
	})
}

// Global returns the process-wide settings, empty until Init was called.
func Global() *Settings {
	return globalSettings
}
