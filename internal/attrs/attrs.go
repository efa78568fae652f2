// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT

// Package attrs parses the --attrs column spec used by listing commands.
//
// Each comma separated spec is key[:title[:transform]]. A key names a field
// of the row's JSON:API attributes; a leading "." addresses the resource root
// instead (.id). A leading "!" keeps the column for filtering and sorting but
// hides it. The key "*" carries a transform applied to every column.
//
// Transform letters: l/u lower/upper case, t local time (TZ), r relative
// time, b human bytes. A number truncates; a negative number elides the
// middle.
package attrs

import (
	"fmt"
	"math"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/dustin/go-humanize"
)

var lengthRegex = regexp.MustCompile(`-?\d+`)

// now is swapped by tests so relative times are stable.
var now = time.Now

// Attr is one output column.
type Attr struct {
	// Key is the gjson path into each row.
	Key string `yaml:"key"`
	// Include false keeps the attr for filtering and sorting only.
	Include bool `yaml:"include"`
	// OutputKey is the column title and the key in json/yaml output.
	OutputKey     string `yaml:"outputKey"`
	TransformSpec string `yaml:"transformSpec"`
}

// Transform applies the attr's transform spec to value.
func (a *Attr) Transform(value any) any {
	if value == nil || a.TransformSpec == "" {
		return value
	}

	if strings.Contains(a.TransformSpec, "b") {
		if n, ok := toUint(value); ok {
			value = humanize.Bytes(n)
		}
	}

	result, ok := value.(string)
	if !ok {
		return value
	}

	if strings.ContainsAny(a.TransformSpec, "rR") {
		if t, err := time.Parse(time.RFC3339, result); err == nil {
			result = humanize.RelTime(t, now(), "ago", "from now")
		}
	} else if strings.ContainsAny(a.TransformSpec, "tT") {
		result = localTime(result)
	}

	// The later of l/u wins so a column spec overrides a global one.
	lastL := strings.LastIndexAny(a.TransformSpec, "lL")
	lastU := strings.LastIndexAny(a.TransformSpec, "uU")
	if lastL > lastU {
		result = strings.ToLower(result)
	} else if lastU > lastL {
		result = strings.ToUpper(result)
	}

	if match := lengthRegex.FindAllString(a.TransformSpec, -1); len(match) != 0 {
		l, _ := strconv.Atoi(match[len(match)-1])
		result = truncate(result, l)
	}

	return result
}

func localTime(value string) string {
	tz := os.Getenv("TZ")
	if tz == "" {
		return value
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.WithError(err).Warnf("unknown timezone %s", tz)
		return value
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		log.Debugf("not a timestamp: %s", value)
		return value
	}
	return t.In(loc).Format("2006-01-02T15:04:05MST")
}

func truncate(s string, l int) string {
	abs := int(math.Abs(float64(l)))
	if len(s) <= abs || abs == 0 {
		return s
	}
	if l > 0 {
		return s[:l]
	}
	half := abs/2 - 1
	if half < 1 {
		return s[:abs]
	}
	return s[:half] + ".." + s[len(s)-half:]
}

func toUint(value any) (uint64, bool) {
	switch v := value.(type) {
	case float64:
		if v < 0 {
			return 0, false
		}
		return uint64(v), true
	case int:
		if v < 0 {
			return 0, false
		}
		return uint64(v), true
	case int64:
		if v < 0 {
			return 0, false
		}
		return uint64(v), true
	case uint64:
		return v, true
	}
	return 0, false
}

// AttrList is the parsed --attrs value.
type AttrList []Attr

// String renders the list in key:title:transform form.
func (a *AttrList) String() string {
	result := make([]string, 0, len(*a))
	for _, attr := range *a {
		result = append(result, fmt.Sprintf("%s:%s:%s", attr.Key, attr.OutputKey, attr.TransformSpec))
	}
	return strings.Join(result, ",")
}

// Set parses value and merges it into the list. Specs naming an existing key
// or title update that attr in place.
func (a *AttrList) Set(value string) error {
	if value == "" || value == "*" {
		return nil
	}

specloop:
	for _, spec := range strings.Split(value, ",") {
		fields := strings.Split(spec, ":")
		if len(fields) > 3 {
			return fmt.Errorf("invalid attr spec %q", spec)
		}

		attr := Attr{Include: true, Key: strings.TrimSpace(fields[0])}
		if rest, ok := strings.CutPrefix(attr.Key, "!"); ok {
			attr.Include = false
			attr.Key = rest
		}
		if attr.Key == "" {
			return fmt.Errorf("invalid attr spec %q", spec)
		}
		if attr.Key == "*" {
			attr.Include = false
		}

		if len(fields) > 1 && strings.TrimSpace(fields[1]) != "" {
			attr.OutputKey = strings.TrimSpace(fields[1])
		} else {
			segments := strings.Split(strings.TrimPrefix(attr.Key, "."), ".")
			attr.OutputKey = segments[len(segments)-1]
		}
		if len(fields) > 2 {
			attr.TransformSpec = strings.TrimSpace(fields[2])
		}

		for i := range *a {
			existing := &(*a)[i]
			if existing.Key == qualify(attr.Key) || existing.OutputKey == attr.Key {
				existing.Include = attr.Include
				existing.OutputKey = attr.OutputKey
				existing.TransformSpec = attr.TransformSpec
				continue specloop
			}
		}

		attr.Key = qualify(attr.Key)
		*a = append(*a, attr)
	}

	return nil
}

func qualify(key string) string {
	if key == "*" {
		return key
	}
	if rest, ok := strings.CutPrefix(key, "."); ok {
		return rest
	}
	return "attributes." + key
}

// SetGlobalTransformSpec prefixes every attr's transform with the spec given
// for "*", if any.
func (a *AttrList) SetGlobalTransformSpec() {
	spec := ""
	for _, attr := range *a {
		if attr.Key == "*" {
			spec = attr.TransformSpec
			break
		}
	}
	if spec == "" {
		return
	}
	for i := range *a {
		if (*a)[i].Key == "*" {
			continue
		}
		(*a)[i].TransformSpec = spec + "," + (*a)[i].TransformSpec
	}
}

// Included returns the visible attrs in order.
func (a AttrList) Included() AttrList {
	var out AttrList
	for _, attr := range a {
		if attr.Include {
			out = append(out, attr)
		}
	}
	return out
}

// Type implements cli.Value style flag introspection.
func (a *AttrList) Type() string {
	return "list"
}
