// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT

package output

import (
	"fmt"
	"io"
	"reflect"
	"slices"
	"strings"
)

// Tag is a parsed jsonapi struct tag.
type Tag struct {
	Kind     string
	Name     string
	Encoding string
}

// NewTag parses a jsonapi tag value. Only primary and attr tags are kept;
// anything else yields the zero Tag.
func NewTag(s string) Tag {
	parts := strings.Split(s, ",")
	if parts[0] != "primary" && parts[0] != "attr" {
		return Tag{}
	}
	tag := Tag{Kind: parts[0]}
	if len(parts) > 1 {
		tag.Name = parts[1]
	}
	if len(parts) > 2 {
		tag.Encoding = parts[2]
	}
	return tag
}

// Attr is the --attrs spelling of the tag: ".id" for the primary key, the
// bare name for attributes.
func (t Tag) Attr() string {
	if t.Kind == "primary" {
		return ".id"
	}
	return t.Name
}

// SchemaTags lists the jsonapi tags of a struct type in field order.
func SchemaTags(typ reflect.Type) []Tag {
	if typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	var tags []Tag
	for i := 0; i < typ.NumField(); i++ {
		value, ok := typ.Field(i).Tag.Lookup("jsonapi")
		if !ok {
			continue
		}
		if tag := NewTag(value); tag.Kind != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

// DumpSchema writes the attrs available for typ, sorted, one per line.
func DumpSchema(w io.Writer, typ reflect.Type) error {
	if typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	tags := SchemaTags(typ)
	names := make([]string, 0, len(tags))
	for _, tag := range tags {
		names = append(names, tag.Attr())
	}
	slices.Sort(names)

	if _, err := fmt.Fprintf(w, "Attributes for %s --\n", typ.Name()); err != nil {
		return err
	}
	for _, name := range names {
		if _, err := fmt.Fprintln(w, name); err != nil {
			return err
		}
	}
	return nil
}
