// Package prompts holds the prompt templates for the model-facing tasks in
// the pipeline. Each prompt family exposes an interface returning
// PromptVersion values so callers can swap template revisions without
// touching call sites.
package prompts

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"

	"github.com/nimbium/cirro/pkg/nlp"
	"github.com/nimbium/cirro/pkg/types"
)

// PairwiseChoice is the parsed verdict of a pairwise comparison prompt.
type PairwiseChoice struct {
	Choice string `json:"choice"`
}

// ParsedRequirements wraps the structured requirements extracted from a
// free-text query.
type ParsedRequirements struct {
	Requirements types.UserRequirements `json:"requirements"`
}

// versionedPrompt adapts a PromptFunction to the PromptVersion interface.
type versionedPrompt struct{ render types.PromptFunction }

// Call renders the prompt messages for the given context. Every system
// message gets a trailing instruction to leave unicode unescaped so names
// like "Zürich" survive the round trip.
func (p *versionedPrompt) Call(context map[string]any) ([]types.Message, error) {
	msgs, err := p.render(context)
	if err != nil {
		return nil, fmt.Errorf("render prompt: %w", err)
	}

	for i, m := range msgs {
		if m.Role == nlp.RoleSystem {
			msgs[i].Content += "\nDo not escape unicode characters.\n"
		}
	}

	return msgs, nil
}

// NewPromptVersion creates a new PromptVersion from a function.
func NewPromptVersion(fn types.PromptFunction) types.PromptVersion { return &versionedPrompt{render: fn} }

// ToPromptJSON serializes data to JSON for use in prompts.
func ToPromptJSON(data any, indent int) (string, error) {
	var out []byte
	var err error
	if indent <= 0 {
		out, err = json.Marshal(data)
	} else {
		out, err = json.MarshalIndent(data, "", strings.Repeat(" ", indent))
	}
	if err != nil {
		return "", fmt.Errorf("marshal prompt data: %w", err)
	}
	return string(out), nil
}

// ToPromptCSV serializes data to CSV for use in prompts. CSV keeps candidate
// tables far cheaper in tokens than JSON. Data should be a slice of structs,
// maps, slices, or scalars. When ensureASCII is true, non-ASCII characters
// are escaped.
func ToPromptCSV(data any, ensureASCII bool) (string, error) {
	list := reflect.ValueOf(data)
	if list.Kind() != reflect.Slice && list.Kind() != reflect.Array {
		return "", fmt.Errorf("ToPromptCSV takes a slice or array, got %T", data)
	}
	if list.Len() == 0 {
		return "", nil
	}

	var rows [][]string
	switch list.Index(0).Kind() {
	case reflect.Map:
		rows = mapRows(list, ensureASCII)
	case reflect.Struct:
		rows = structRows(list, ensureASCII)
	case reflect.Slice, reflect.Array:
		rows = nestedRows(list, ensureASCII)
	default:
		rows = scalarRows(list, ensureASCII)
	}

	var b bytes.Buffer
	w := csv.NewWriter(&b)
	if err := w.WriteAll(rows); err != nil {
		return "", fmt.Errorf("write csv rows: %w", err)
	}
	return b.String(), nil
}

// mapRows renders a slice of maps with a header row of the sorted key union.
// Keys missing from an individual map leave the cell empty.
func mapRows(list reflect.Value, ensureASCII bool) [][]string {
	seen := make(map[string]bool)
	var keys []string
	for i := 0; i < list.Len(); i++ {
		for _, key := range list.Index(i).MapKeys() {
			name := fmt.Sprint(key.Interface())
			if !seen[name] {
				seen[name] = true
				keys = append(keys, name)
			}
		}
	}
	slices.Sort(keys)

	rows := [][]string{keys}
	for i := 0; i < list.Len(); i++ {
		m := list.Index(i)
		cells := make([]string, len(keys))
		for j, k := range keys {
			if val := m.MapIndex(reflect.ValueOf(k)); val.IsValid() {
				cells[j] = cellValue(val.Interface(), ensureASCII)
			}
		}
		rows = append(rows, cells)
	}
	return rows
}

// structRows renders a slice of structs with exported field names, in
// declaration order, as the header.
func structRows(list reflect.Value, ensureASCII bool) [][]string {
	st := list.Index(0).Type()

	var header []string
	var indices []int
	for i := 0; i < st.NumField(); i++ {
		if !st.Field(i).IsExported() {
			continue
		}
		header = append(header, st.Field(i).Name)
		indices = append(indices, i)
	}

	rows := [][]string{header}
	for i := 0; i < list.Len(); i++ {
		item := list.Index(i)
		cells := make([]string, len(indices))
		for j, idx := range indices {
			cells[j] = cellValue(item.Field(idx).Interface(), ensureASCII)
		}
		rows = append(rows, cells)
	}
	return rows
}

// nestedRows renders a slice of slices, one inner slice per row, no header.
func nestedRows(list reflect.Value, ensureASCII bool) [][]string {
	rows := make([][]string, 0, list.Len())
	for i := 0; i < list.Len(); i++ {
		inner := list.Index(i)
		cells := make([]string, inner.Len())
		for j := 0; j < inner.Len(); j++ {
			cells[j] = cellValue(inner.Index(j).Interface(), ensureASCII)
		}
		rows = append(rows, cells)
	}
	return rows
}

// scalarRows renders a slice of scalars as a single column.
func scalarRows(list reflect.Value, ensureASCII bool) [][]string {
	rows := make([][]string, 0, list.Len())
	for i := 0; i < list.Len(); i++ {
		rows = append(rows, []string{cellValue(list.Index(i).Interface(), ensureASCII)})
	}
	return rows
}

// cellValue converts a value to its CSV cell representation.
func cellValue(val any, ensureASCII bool) string {
	if val == nil {
		return ""
	}

	var text string
	switch t := val.(type) {
	case string:
		text = t
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprint(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case []string:
		// Feature and tag lists render as one delimited cell
		text = strings.Join(t, "; ")
	default:
		s := reflect.ValueOf(val)
		if s.Kind() == reflect.Slice || s.Kind() == reflect.Array {
			parts := make([]string, s.Len())
			for i := range parts {
				parts[i] = cellValue(s.Index(i).Interface(), ensureASCII)
			}
			text = strings.Join(parts, "; ")
		} else if out, err := json.Marshal(val); err == nil {
			text = string(out)
		} else {
			text = fmt.Sprint(val)
		}
	}

	if !ensureASCII {
		return text
	}
	return escapeUnicode(text)
}

// escapeUnicode replaces every rune above ASCII with its \uXXXX form.
func escapeUnicode(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if r <= unicode.MaxASCII {
			b.WriteRune(r)
			continue
		}
		fmt.Fprintf(&b, "\\u%04x", r)
	}
	return b.String()
}

// ToPromptYAML serializes data to YAML for use in prompts.
func ToPromptYAML(data any) (string, error) {
	var b bytes.Buffer
	y := yaml.NewEncoder(&b)
	y.SetIndent(2)
	if err := y.Encode(data); err != nil {
		return "", fmt.Errorf("encode prompt yaml: %w", err)
	}
	return b.String(), nil
}

// loggerFrom returns the logger carried in the prompt context, or the
// default logger when none was provided.
func loggerFrom(context map[string]any) *slog.Logger {
	if l, ok := context["logger"].(*slog.Logger); ok && l != nil {
		return l
	}
	return slog.Default()
}

// logPrompts dumps rendered prompts to stdout when DEBUG_LLM_PROMPTS is set,
// with newlines preserved instead of escaped.
func logPrompts(logger *slog.Logger, system, user string) {
	if os.Getenv("DEBUG_LLM_PROMPTS") != "true" {
		return
	}

	logger.Debug("dumping rendered prompts to stdout")
	fmt.Println("--- system prompt ---")
	fmt.Println(system)
	fmt.Println("--- user prompt ---")
	fmt.Println(user)
	fmt.Println("--- end prompts ---")
}

// LogResponses dumps the raw model response to stdout when DEBUG_LLM_PROMPTS
// is set.
func LogResponses(logger *slog.Logger, resp types.Response) {
	if os.Getenv("DEBUG_LLM_PROMPTS") != "true" {
		return
	}

	logger.Debug("dumping model response to stdout")
	fmt.Println("--- model response ---")
	fmt.Println(resp.Content)
	fmt.Println("--- end response ---")
}
