// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT

package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"strconv"

	"github.com/apex/log"
	"github.com/charmbracelet/lipgloss/v2"
	"github.com/charmbracelet/lipgloss/v2/table"
	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v2"

	"github.com/staranto/brickify/internal/attrs"
	"github.com/staranto/brickify/internal/config"
	"github.com/staranto/brickify/internal/filters"
)

// Formats accepted by SliceDiceSpit.
var Formats = []string{"text", "json", "yaml", "raw"}

// Options are the presentation flags shared by listing commands.
type Options struct {
	Format string
	Filter string
	Sort   string
	Titles bool
	Color  bool
}

// SliceDiceSpit filters, transforms, sorts and renders raw, a JSON:API
// document, to w. parent selects the row array inside raw ("data" for a
// payload). Raw format copies raw through untouched.
func SliceDiceSpit(raw bytes.Buffer, al attrs.AttrList, opts Options, parent string, w io.Writer) error {
	if opts.Format == "raw" {
		_, err := w.Write(raw.Bytes())
		return err
	}

	doc := gjson.Parse(raw.String())
	if parent != "" {
		doc = doc.Get(parent)
	}

	dataset := filters.FilterDataset(doc, al, opts.Filter)

	// Sort on raw values so sizes and times order numerically.
	SortDataset(dataset, opts.Sort)

	for _, row := range dataset {
		for i := range al {
			if al[i].TransformSpec != "" {
				row[al[i].OutputKey] = al[i].Transform(row[al[i].OutputKey])
			}
		}
	}

	// Hidden attrs only take part in filtering and sorting.
	visible := al.Included()
	for _, row := range dataset {
		for _, attr := range al {
			if !attr.Include {
				delete(row, attr.OutputKey)
			}
		}
	}

	switch opts.Format {
	case "json":
		if dataset == nil {
			dataset = []map[string]any{}
		}
		out, err := json.Marshal(dataset)
		if err != nil {
			return fmt.Errorf("failed to encode json output: %w", err)
		}
		_, err = w.Write(append(out, '\n'))
		return err
	case "yaml":
		out, err := yaml.Marshal(dataset)
		if err != nil {
			return fmt.Errorf("failed to encode yaml output: %w", err)
		}
		_, err = w.Write(out)
		return err
	case "", "text":
		return TableWriter(dataset, visible, opts, w)
	}
	return fmt.Errorf("unknown output format %q", opts.Format)
}

// TableWriter renders rows as an unbordered table of the al columns.
func TableWriter(rows []map[string]any, al attrs.AttrList, opts Options, w io.Writer) error {
	if len(rows) == 0 {
		return nil
	}

	var (
		headerStyle  = lipgloss.NewStyle().Align(lipgloss.Left)
		cellStyle    = lipgloss.NewStyle().Padding(0, 0).Align(lipgloss.Left)
		evenRowStyle = cellStyle
		oddRowStyle  = cellStyle
	)

	if opts.Color {
		headerColor, evenColor, oddColor := getColors("colors")
		headerStyle = headerStyle.Foreground(lipgloss.Color(headerColor))
		evenRowStyle = evenRowStyle.Foreground(lipgloss.Color(evenColor))
		oddRowStyle = oddRowStyle.Foreground(lipgloss.Color(oddColor))
	}

	pad, _ := config.GetInt("padding", 2)

	cells := make([][]string, 0, len(rows))
	for _, row := range rows {
		line := make([]string, 0, len(al))
		for _, attr := range al {
			line = append(line, InterfaceToString(row[attr.OutputKey], "-"))
		}
		cells = append(cells, line)
	}

	t := table.New().
		BorderBottom(false).
		BorderTop(false).
		BorderLeft(false).
		BorderRight(false).
		Border(lipgloss.HiddenBorder()).
		StyleFunc(func(row, col int) lipgloss.Style {
			var style lipgloss.Style
			switch {
			case row == table.HeaderRow:
				style = headerStyle
			case row%2 == 0:
				style = evenRowStyle
			default:
				style = oddRowStyle
			}
			if col > 0 {
				style = style.PaddingLeft(pad)
			}
			return style
		}).
		Rows(cells...)

	if opts.Titles {
		headers := make([]string, 0, len(al))
		for _, attr := range al {
			headers = append(headers, attr.OutputKey)
		}
		// https://github.com/charmbracelet/lipgloss/issues/261
		t = t.Headers(headers...).BorderHeader(false)
	}

	_, err := fmt.Fprintln(w, t)
	return err
}

// getColors returns the configured table colors.
func getColors(key string) (header string, even string, odd string) {
	header, _ = config.GetString(key+".title", "#f6be00")
	even, _ = config.GetString(key+".even", "#ffffff")
	odd, _ = config.GetString(key+".odd", "#00c8f0")
	return
}

// InterfaceToString renders a cell value. emptyValue, default "", stands in
// for nil and zero values.
func InterfaceToString(value any, emptyValue ...string) string {
	empty := ""
	if len(emptyValue) > 0 {
		empty = emptyValue[0]
	}

	if value == nil || reflect.ValueOf(value).IsZero() {
		return empty
	}

	switch value := value.(type) {
	case string:
		return value
	case int:
		return strconv.Itoa(value)
	case int64:
		return strconv.FormatInt(value, 10)
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(value)
	default:
		out, err := json.Marshal(value)
		if err != nil {
			log.WithError(err).Debugf("falling back to %%v for %T", value)
			return fmt.Sprintf("%v", value)
		}
		return string(out)
	}
}
