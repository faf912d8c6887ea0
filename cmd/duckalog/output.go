package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/duckalog/duckalog/internal/core/port"
)

func validateFormat(format string) error {
	switch format {
	case "table", "json", "csv":
		return nil
	}
	return fmt.Errorf("unsupported output format %q: use table, json or csv", format)
}

func cellString(v any) string {
	if v == nil {
		return "NULL"
	}
	return fmt.Sprint(v)
}

func printResult(w io.Writer, r *port.QueryResult, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case "csv":
		return printCSV(w, r)
	default:
		return printTable(w, r)
	}
}

func printCSV(w io.Writer, r *port.QueryResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(r.Columns); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}
	record := make([]string, len(r.Columns))
	for _, row := range r.Rows {
		for i, c := range r.Columns {
			record[i] = cellString(row[c])
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("writing csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// printTable writes upper-cased headers and rows separated by two spaces.
func printTable(w io.Writer, r *port.QueryResult) error {
	if len(r.Columns) == 0 {
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	header := make([]string, len(r.Columns))
	for i, c := range r.Columns {
		header[i] = strings.ToUpper(c)
	}
	fmt.Fprintln(tw, strings.Join(header, "\t"))

	cells := make([]string, len(r.Columns))
	for _, row := range r.Rows {
		for i, c := range r.Columns {
			cells[i] = strings.ReplaceAll(cellString(row[c]), "\t", " ")
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if r.Truncated {
		_, err := fmt.Fprintf(w, "(%d rows, truncated at the row limit)\n", len(r.Rows))
		return err
	}
	_, err := fmt.Fprintf(w, "(%d rows)\n", len(r.Rows))
	return err
}
