package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/olmmcc/sitedb/internal/store"
)

// Output formats.
const (
	formatTable = "table"
	formatTSV   = "tsv"
)

// columnHeaders names the columns of each dialect's column description.
// sqlite3 omits the cid column, which the store drops.
var columnHeaders = map[string][]string{
	"mysql":    {"Field", "Type", "Null", "Key", "Default", "Extra"},
	"sqlite3":  {"name", "type", "notnull", "dflt_value", "pk"},
	"postgres": {"column_name", "data_type", "is_nullable", "column_default"},
}

var tsvEscaper = strings.NewReplacer("\\", "\\\\", "\t", "\\t", "\n", "\\n", "\r", "\\r")

func checkFormat(format string) error {
	switch format {
	case formatTable, formatTSV:
		return nil
	default:
		return fmt.Errorf("unknown output format %q: want table or tsv", format)
	}
}

// render writes rs to stdout in the selected format. header may be nil.
func (a *app) render(header []string, rs store.ResultSet) error {
	if a.format == formatTSV {
		return writeTSV(a.stdout, header, rs)
	}
	writeTable(a.stdout, header, rs)
	return nil
}

func writeTable(w io.Writer, header []string, rs store.ResultSet) {
	tw := tablewriter.NewWriter(w)
	tw.SetAutoFormatHeaders(false)
	if len(header) > 0 {
		tw.SetHeader(header)
	}
	for _, row := range rs {
		tw.Append(cells(row))
	}
	tw.Render()
}

func writeTSV(w io.Writer, header []string, rs store.ResultSet) error {
	if len(header) > 0 {
		if _, err := fmt.Fprintln(w, joinTSV(header)); err != nil {
			return err
		}
	}
	for _, row := range rs {
		if _, err := fmt.Fprintln(w, joinTSV(cells(row))); err != nil {
			return err
		}
	}
	return nil
}

func joinTSV(fields []string) string {
	escaped := make([]string, len(fields))
	for i, f := range fields {
		escaped[i] = tsvEscaper.Replace(f)
	}
	return strings.Join(escaped, "\t")
}

func cells(row store.Row) []string {
	out := make([]string, len(row))
	for i, v := range row {
		out[i] = v.String()
	}
	return out
}

// header returns the column names for a projection of table. An empty or
// "*" projection is resolved through column introspection; when that fails
// the result is rendered without a header.
func (a *app) header(ctx context.Context, table, columns string) []string {
	columns = strings.TrimSpace(columns)
	if columns != "" && columns != "*" {
		names := strings.Split(columns, ",")
		for i := range names {
			names[i] = strings.TrimSpace(names[i])
		}
		return names
	}

	names, err := a.store.ColumnNames(ctx, table)
	if err != nil {
		a.log.Debug("column names unavailable", "table", table, "error", err)
		return nil
	}
	return names
}
