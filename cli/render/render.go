// Package render provides centralized output rendering for the reel CLI.
//
// Format selection:
//   - If output is a TTY, default to table
//   - If output is not a TTY, default to json
//   - --format flag always overrides defaults
//   - Invalid formats are errors
//
// Color handling:
//   - --no-color affects table output only
//   - TUI mode is unaffected by --no-color (uses its own styling)
package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"reflect"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/pithecene-io/reel/cli/tui"
)

// Format represents an output format.
type Format string

// Supported formats.
const (
	FormatJSON  Format = "json"
	FormatTable Format = "table"
	FormatYAML  Format = "yaml"
)

var headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))

// ParseFormat parses a format string, returning an error for invalid formats.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "json":
		return FormatJSON, nil
	case "table":
		return FormatTable, nil
	case "yaml":
		return FormatYAML, nil
	case "":
		return "", nil // Let caller decide default
	default:
		return "", fmt.Errorf("invalid format: %q (must be json, table, or yaml)", s)
	}
}

// Renderer handles output formatting.
type Renderer struct {
	format  Format
	noColor bool
	out     io.Writer
}

// NewRenderer creates a renderer from CLI context. Output goes to the app's
// writer, stdout by default.
func NewRenderer(c *cli.Context) (*Renderer, error) {
	format, err := ParseFormat(c.String("format"))
	if err != nil {
		return nil, err
	}

	var out io.Writer = os.Stdout
	if c.App != nil && c.App.Writer != nil {
		out = c.App.Writer
	}

	if format == "" {
		if f, ok := out.(*os.File); ok && isTTY(f) {
			format = FormatTable
		} else {
			format = FormatJSON
		}
	}

	return &Renderer{
		format:  format,
		noColor: c.Bool("no-color"),
		out:     out,
	}, nil
}

// NewRendererWithWriter creates a renderer with a custom writer (for testing).
func NewRendererWithWriter(format Format, noColor bool, out io.Writer) *Renderer {
	return &Renderer{
		format:  format,
		noColor: noColor,
		out:     out,
	}
}

// Render outputs the data in the configured format.
func (r *Renderer) Render(data any) error {
	switch r.format {
	case FormatJSON:
		return r.renderJSON(data)
	case FormatTable:
		return r.renderTable(data)
	case FormatYAML:
		return r.renderYAML(data)
	default:
		return fmt.Errorf("unknown format: %s", r.format)
	}
}

// RenderTUI opens the read-only TUI for viewType. When output is not a
// terminal it writes a single static frame instead.
func (r *Renderer) RenderTUI(viewType string, data any) error {
	if !tui.IsTUISupported(viewType) {
		return fmt.Errorf("--tui is not supported for %s", viewType)
	}
	if f, ok := r.out.(*os.File); ok && isTTY(f) {
		return tui.Run(viewType, data)
	}
	frame, err := tui.RenderStatic(viewType, data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(r.out, frame)
	return err
}

func (r *Renderer) renderJSON(data any) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func (r *Renderer) renderYAML(data any) error {
	enc := yaml.NewEncoder(r.out)
	enc.SetIndent(2)
	if err := enc.Encode(data); err != nil {
		return err
	}
	return enc.Close()
}

// renderTable lays rows out with tabwriter, then styles the header line.
// Styling after alignment keeps escape codes out of the width computation.
func (r *Renderer) renderTable(data any) error {
	v := reflect.ValueOf(data)
	for v.Kind() == reflect.Pointer && !v.IsNil() {
		v = v.Elem()
	}

	var rows [][]string
	header := false
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		if v.Len() == 0 {
			_, err := fmt.Fprintln(r.out, "(no results)")
			return err
		}
		rows = sliceRows(v)
		header = true
	case reflect.Struct:
		rows = structRows(v)
	case reflect.Map:
		rows = mapRows(v)
	default:
		_, err := fmt.Fprintf(r.out, "%v\n", data)
		return err
	}

	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	for _, row := range rows {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	out := buf.String()
	if header && !r.noColor {
		first, rest, _ := strings.Cut(out, "\n")
		out = headerStyle.Render(first) + "\n" + rest
	}
	_, err := io.WriteString(r.out, out)
	return err
}

func sliceRows(v reflect.Value) [][]string {
	first := indirect(v.Index(0))
	var headers []string
	switch first.Kind() {
	case reflect.Struct:
		t := first.Type()
		for i := range t.NumField() {
			if name, ok := fieldName(t.Field(i)); ok {
				headers = append(headers, name)
			}
		}
	case reflect.Map:
		headers = sortedKeys(first)
	default:
		headers = []string{"value"}
	}

	rows := [][]string{headers}
	for i := range v.Len() {
		item := indirect(v.Index(i))
		var row []string
		switch item.Kind() {
		case reflect.Struct:
			t := item.Type()
			for j := range t.NumField() {
				if _, ok := fieldName(t.Field(j)); ok {
					row = append(row, formatValue(item.Field(j)))
				}
			}
		case reflect.Map:
			for _, h := range headers {
				row = append(row, formatValue(item.MapIndex(reflect.ValueOf(h))))
			}
		default:
			row = []string{formatValue(item)}
		}
		rows = append(rows, row)
	}
	return rows
}

func structRows(v reflect.Value) [][]string {
	var rows [][]string
	t := v.Type()
	for i := range t.NumField() {
		name, ok := fieldName(t.Field(i))
		if !ok {
			continue
		}
		field := indirect(v.Field(i))
		if field.Kind() == reflect.Map && field.Len() > 0 {
			for _, key := range sortedKeys(field) {
				rows = append(rows, []string{name + "." + key + ":", formatValue(field.MapIndex(mapKey(field, key)))})
			}
			continue
		}
		rows = append(rows, []string{name + ":", formatValue(v.Field(i))})
	}
	return rows
}

func mapRows(v reflect.Value) [][]string {
	rows := make([][]string, 0, v.Len())
	for _, key := range sortedKeys(v) {
		rows = append(rows, []string{key + ":", formatValue(v.MapIndex(mapKey(v, key)))})
	}
	return rows
}

// sortedKeys returns the map's keys rendered as strings, in order.
// Integer keys sort numerically.
func sortedKeys(m reflect.Value) []string {
	keys := m.MapKeys()
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.CanInt() && b.CanInt() {
			return a.Int() < b.Int()
		}
		return fmt.Sprint(a.Interface()) < fmt.Sprint(b.Interface())
	})
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = fmt.Sprint(k.Interface())
	}
	return out
}

// mapKey finds the key of m whose string form is s.
func mapKey(m reflect.Value, s string) reflect.Value {
	for _, k := range m.MapKeys() {
		if fmt.Sprint(k.Interface()) == s {
			return k
		}
	}
	return reflect.Value{}
}

func indirect(v reflect.Value) reflect.Value {
	for v.IsValid() && (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) && !v.IsNil() {
		v = v.Elem()
	}
	return v
}

// fieldName returns the json tag name of f, or false for skipped fields.
func fieldName(f reflect.StructField) (string, bool) {
	if !f.IsExported() {
		return "", false
	}
	if tag := f.Tag.Get("json"); tag != "" {
		name, _, _ := strings.Cut(tag, ",")
		if name == "-" {
			return "", false
		}
		if name != "" {
			return name, true
		}
	}
	return strings.ToLower(f.Name), true
}

var timeType = reflect.TypeOf(time.Time{})

func formatValue(v reflect.Value) string {
	if !v.IsValid() {
		return ""
	}
	if (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) && v.IsNil() {
		return ""
	}
	v = indirect(v)

	if v.Type() == timeType {
		return v.Interface().(time.Time).UTC().Format(time.RFC3339)
	}

	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		if v.Len() == 0 {
			return "[]"
		}
		return fmt.Sprintf("[%d items]", v.Len())
	case reflect.Map:
		if v.Len() == 0 {
			return "{}"
		}
		return fmt.Sprintf("{%d keys}", v.Len())
	case reflect.Struct:
		return "{...}"
	default:
		return fmt.Sprintf("%v", v.Interface())
	}
}

// isTTY returns true if the file is a terminal.
func isTTY(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
