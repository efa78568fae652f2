// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// Package filters implements the --filter row predicates of listing commands.
//
// A spec is a comma separated list of key op target terms, all of which must
// hold. Operators: = equal, ~ equal ignoring case, ^ prefix, @ contains,
// / regexp, < and > ordering (numeric when the value is a number). Prefix an
// operator with ! to negate it: status!=200, url!^http://cdn.
package filters

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/apex/log"
	"github.com/tidwall/gjson"

	"github.com/staranto/brickify/internal/attrs"
)

var filterRegex = regexp.MustCompile(`^(.*?)(!?[=^~<>@/])(.*)$`)

// Filter is one parsed term.
type Filter struct {
	Key     string
	Negate  bool
	Operand string
	Target  string
}

// BuildFilters parses spec. Malformed terms are logged and skipped. The term
// delimiter defaults to "," and can be changed with BRICKIFY_FILTER_DELIM.
func BuildFilters(spec string) []Filter {
	if spec == "" {
		return nil
	}

	delim := ","
	if d, ok := os.LookupEnv("BRICKIFY_FILTER_DELIM"); ok && d != "" {
		delim = d
	}

	var filters []Filter
	for _, term := range strings.Split(spec, delim) {
		parts := filterRegex.FindStringSubmatch(term)
		if parts == nil || parts[1] == "" {
			log.Errorf("invalid filter: %s", term)
			continue
		}
		op, negate := strings.CutPrefix(parts[2], "!")
		filters = append(filters, Filter{
			Key:     parts[1],
			Negate:  negate,
			Operand: op,
			Target:  parts[3],
		})
	}
	return filters
}

// FilterDataset keeps the rows of candidates matching spec and projects each
// onto al, keyed by OutputKey. Values are left untransformed.
func FilterDataset(candidates gjson.Result, al attrs.AttrList, spec string) []map[string]any {
	filters := BuildFilters(spec)

	var rows []map[string]any
	for _, candidate := range candidates.Array() {
		if !Match(candidate, al, filters) {
			continue
		}
		row := make(map[string]any, len(al))
		for _, attr := range al {
			if attr.Key == "*" {
				continue
			}
			row[attr.OutputKey] = candidate.Get(attr.Key).Value()
		}
		rows = append(rows, row)
	}
	return rows
}

// Match reports whether candidate satisfies every filter. Filter keys are
// column titles; a key naming no column is reported and ignored.
func Match(candidate gjson.Result, al attrs.AttrList, filters []Filter) bool {
	for _, f := range filters {
		key := ""
		for _, attr := range al {
			if attr.OutputKey == f.Key {
				key = attr.Key
				break
			}
		}
		if key == "" {
			msg := fmt.Sprintf("filter key not found: %s", f.Key)
			log.Error(msg)
			fmt.Fprintf(os.Stderr, "warning: %s\n", msg)
			continue
		}

		value := candidate.Get(key)
		if !value.Exists() || value.Type == gjson.Null {
			return false
		}
		if !check(value, f) {
			return false
		}
	}
	return true
}

func check(value gjson.Result, f Filter) bool {
	switch value.Type {
	case gjson.Number:
		if f.Operand == "=" || f.Operand == "<" || f.Operand == ">" {
			return checkNumeric(value.Float(), f)
		}
		return checkString(value.Raw, f)
	case gjson.JSON:
		if f.Operand == "@" {
			return checkContains(value, f)
		}
		return checkString(value.Raw, f)
	default:
		return checkString(value.String(), f)
	}
}

func checkNumeric(value float64, f Filter) bool {
	tgt, err := strconv.ParseFloat(strings.TrimSpace(f.Target), 64)
	if err != nil {
		log.Errorf("invalid numeric target: %s", f.Target)
		return false
	}
	var ok bool
	switch f.Operand {
	case "=":
		ok = value == tgt
	case ">":
		ok = value > tgt
	case "<":
		ok = value < tgt
	}
	return ok != f.Negate
}

// checkContains tests array membership or object key presence.
func checkContains(value gjson.Result, f Filter) bool {
	found := false
	if value.IsArray() {
		for _, item := range value.Array() {
			if item.String() == f.Target {
				found = true
				break
			}
		}
	} else {
		_, found = value.Map()[f.Target]
	}
	return found != f.Negate
}

func checkString(value string, f Filter) bool {
	var ok bool
	switch f.Operand {
	case "=":
		ok = value == f.Target
	case "~":
		ok = strings.EqualFold(value, f.Target)
	case "^":
		ok = strings.HasPrefix(value, f.Target)
	case ">":
		ok = value > f.Target
	case "<":
		ok = value < f.Target
	case "@":
		ok = strings.Contains(value, f.Target)
	case "/":
		re, err := regexp.Compile(f.Target)
		if err != nil {
			log.Errorf("invalid regex: %s", f.Target)
			return false
		}
		ok = re.MatchString(value)
	default:
		log.Errorf("unsupported filtering operand: %s", f.Operand)
		return false
	}
	return ok != f.Negate
}
