// SPDX-FileCopyrightText: 2025 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package output

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"
)

// WriteTable writes rows under upper-case headers, columns aligned.
func WriteTable(w io.Writer, headers []string, rows [][]string) {
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, strings.ToUpper(strings.Join(headers, "\t")))
	for _, row := range rows {
		cells := make([]string, len(row))
		for i, cell := range row {
			if cell == "" {
				cell = "-"
			}
			cells[i] = cell
		}
		_, _ = fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	_ = tw.Flush()
}

// Field is one line of a key/value listing.
type Field struct {
	Name  string
	Value string
}

func WriteFields(w io.Writer, fields []Field) {
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	for _, f := range fields {
		value := f.Value
		if value == "" {
			value = "-"
		}
		_, _ = fmt.Fprintf(tw, "%s:\t%s\n", f.Name, value)
	}
	_ = tw.Flush()
}

func FormatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(time.RFC3339)
}

// FormatExpiry renders an expiry relative to now, e.g. "in 59m" or "expired".
func FormatExpiry(t time.Time, now time.Time) string {
	if t.IsZero() {
		return "never"
	}
	left := t.Sub(now)
	if left <= 0 {
		return "expired"
	}
	return "in " + left.Truncate(time.Second).String()
}
