package utils

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// UnmarshalCSV parses CSV text into a slice of structs. Columns are
// matched to fields by `csv` tag, falling back to the lowercased field
// name. Rows that fail to parse are skipped with a warning so one
// mangled line does not reject a whole catalog export.
func UnmarshalCSV[T any](csvString string, delimiter rune) ([]*T, error) {
	reader := csv.NewReader(strings.NewReader(csvString))
	reader.Comma = delimiter
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	columns := columnsFor[T](header)

	results := make([]*T, 0)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: skipping bad CSV row: %v\n", err)
			continue
		}
		if len(record) != len(header) {
			continue
		}

		row, err := decodeRow[T](record, columns)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to map CSV row: %v\n", err)
			continue
		}
		results = append(results, row)
	}
	return results, nil
}

// columnsFor resolves each header column to a field index in T, or -1
// for columns T does not carry.
func columnsFor[T any](header []string) []int {
	structType := reflect.TypeOf((*T)(nil)).Elem()

	byName := make(map[string]int, structType.NumField())
	for i := 0; i < structType.NumField(); i++ {
		field := structType.Field(i)
		if tag := field.Tag.Get("csv"); tag != "" && tag != "-" {
			byName[tag] = i
			continue
		}
		byName[strings.ToLower(field.Name)] = i
	}

	columns := make([]int, len(header))
	for i, name := range header {
		idx := -1
		if j, ok := byName[name]; ok {
			idx = j
		} else if j, ok := byName[strings.ToLower(name)]; ok {
			idx = j
		}
		columns[i] = idx
	}
	return columns
}

func decodeRow[T any](record []string, columns []int) (*T, error) {
	row := new(T)
	value := reflect.ValueOf(row).Elem()
	for col, fieldIdx := range columns {
		if fieldIdx < 0 {
			continue
		}
		if err := assign(value.Field(fieldIdx), record[col]); err != nil {
			return nil, err
		}
	}
	return row, nil
}

// assign converts one CSV cell onto a struct field, allocating through
// pointers as needed.
func assign(field reflect.Value, raw string) error {
	if !field.CanSet() {
		return errors.New("field cannot be set")
	}

	if field.Kind() == reflect.Ptr {
		if field.IsNil() {
			field.Set(reflect.New(field.Type().Elem()))
		}
		field = field.Elem()
	}

	if field.Kind() == reflect.Slice {
		return assignList(field, raw)
	}
	return assignScalar(field, raw, true)
}

// assignScalar sets a base-kind value. With allowEmpty, empty numeric
// and bool cells keep the zero value instead of failing the row; list
// elements pass false so "a,,b" still reports the hole.
func assignScalar(field reflect.Value, raw string, allowEmpty bool) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(raw)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return err
		}
		if field.OverflowInt(i) {
			return fmt.Errorf("int overflow for value %s", raw)
		}
		field.SetInt(i)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return err
		}
		if field.OverflowUint(u) {
			return fmt.Errorf("uint overflow for value %s", raw)
		}
		field.SetUint(u)
	case reflect.Float32, reflect.Float64:
		if allowEmpty && raw == "" {
			return nil
		}
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return err
		}
		if field.OverflowFloat(f) {
			return fmt.Errorf("float overflow for value %s", raw)
		}
		field.SetFloat(f)
	case reflect.Bool:
		if allowEmpty && raw == "" {
			return nil
		}
		b, err := strconv.ParseBool(strings.ToLower(raw))
		if err != nil {
			return err
		}
		field.SetBool(b)
	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}
	return nil
}

// assignList parses bracketed ("[a, b]") and bare ("a,b") comma lists.
func assignList(field reflect.Value, raw string) error {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]") {
		trimmed = strings.TrimSpace(trimmed[1 : len(trimmed)-1])
	}
	if trimmed == "" {
		field.Set(reflect.MakeSlice(field.Type(), 0, 0))
		return nil
	}

	parts := strings.Split(trimmed, ",")
	list := reflect.MakeSlice(field.Type(), len(parts), len(parts))
	for i, part := range parts {
		part = strings.Trim(strings.TrimSpace(part), `"'`)
		if err := assignScalar(list.Index(i), part, false); err != nil {
			return fmt.Errorf("failed to set list element %d: %w", i, err)
		}
	}
	field.Set(list)
	return nil
}

// UnmarshalYAML parses a YAML list into a slice of structs. Invalid
// items are skipped so one bad entry does not reject a whole catalog
// file; an error is returned only when nothing parses.
func UnmarshalYAML[T any](yamlString string) ([]*T, error) {
	var nodes []yaml.Node
	if err := yaml.Unmarshal([]byte(yamlString), &nodes); err != nil {
		return nil, fmt.Errorf("failed to parse YAML structure: %w", err)
	}

	results := make([]*T, 0, len(nodes))
	var errs []error
	for i, node := range nodes {
		var item T
		if err := node.Decode(&item); err != nil {
			errs = append(errs, fmt.Errorf("failed to unmarshal item %d: %v", i, err))
			continue
		}
		results = append(results, &item)
	}

	if len(results) == 0 && len(errs) > 0 {
		return nil, fmt.Errorf("failed to unmarshal any items: %v", errs[0])
	}
	if len(errs) > 0 {
		fmt.Fprintf(os.Stderr, "warning: %d YAML items failed to parse and were skipped\n", len(errs))
	}
	return results, nil
}
