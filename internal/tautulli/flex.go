package tautulli

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Tautulli is loose about scalar types: counts, sizes and section ids arrive
// as numbers or strings depending on version and code path. FlexInt and
// FlexString absorb both.

// FlexInt decodes from a JSON number or a numeric string. Missing, null,
// empty or unparseable values decode to zero.
type FlexInt int64

func (f *FlexInt) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	if len(s) >= 2 && s[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			*f = 0
			return nil
		}
		s = strings.TrimSpace(str)
		if s == "" {
			*f = 0
			return nil
		}
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		*f = 0
		return nil
	}
	*f = FlexInt(int64(n))
	return nil
}

// Int64 returns the value as a plain int64.
func (f FlexInt) Int64() int64 {
	return int64(f)
}

// FlexString decodes from a JSON string or number.
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "" || s == "null" {
		*f = ""
		return nil
	}
	if len(s) >= 2 && s[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			*f = ""
			return nil
		}
		*f = FlexString(str)
		return nil
	}
	*f = FlexString(s)
	return nil
}

// String returns the value as a plain string.
func (f FlexString) String() string {
	return string(f)
}
