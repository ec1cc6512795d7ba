// Package mapping parses the column mapping document that drives sheet
// layouts: fixed input columns, per-period date ranges and the daily
// submission columns. Both JSON and YAML documents are accepted; entry order
// is significant and preserved.
package mapping

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"dosage-management/internal/excel"
	"dosage-management/internal/schema"
	"dosage-management/pkg/errors"

	"gopkg.in/yaml.v3"
)

const (
	KeyInputColumns = "InputColumns"
	KeyDailyColumns = "DailyDosageColumns"

	keyType       = "Type"
	keyCLRType    = "CLRType"
	keyPrimaryKey = "PrimaryKey"
	keyOriginName = "OriginName"
	// misspelled variant found in existing mapping files
	keyOrginName = "OrginName"

	keyValueStart  = "VALUEStart"
	keyValueEnd    = "VALUEEnd"
	keyPTDStart    = "PTDStart"
	keyPTDEnd      = "PTDEnd"
	keyVolumeStart = "VOLUMEStart"
	keyVolumeEnd   = "VOLUMEEnd"
	keyDateLength  = "DateLength"
	keyDateLengh   = "DateLengh"
)

// Mapping is immutable once parsed.
type Mapping struct {
	inputs  []schema.Field
	daily   []schema.Field
	periods map[string]schema.PeriodSpec
}

func Load(path string) (*Mapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read column mapping: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Mapping, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.NewConfigError("document", "%v", err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return nil, errors.NewConfigError("document", "top level must be an object")
	}

	m := &Mapping{periods: make(map[string]schema.PeriodSpec)}
	root := doc.Content[0]

	for i := 0; i+1 < len(root.Content); i += 2 {
		key, value := root.Content[i].Value, root.Content[i+1]

		var err error
		switch {
		case key == KeyInputColumns:
			m.inputs, err = parseInputColumns(value)
		case key == KeyDailyColumns:
			m.daily, err = parseDailyColumns(value)
		case isPeriodSpec(value):
			var spec schema.PeriodSpec
			spec, err = parsePeriod(strings.ToUpper(key), value)
			m.periods[spec.Code] = spec
		}
		if err != nil {
			return nil, err
		}
	}

	return m, nil
}

// Period returns the range spec of a period code (case-insensitive).
func (m *Mapping) Period(code string) (schema.PeriodSpec, error) {
	spec, ok := m.periods[strings.ToUpper(code)]
	if !ok {
		return schema.PeriodSpec{}, errors.NewConfigError(code, "no range specification for period")
	}
	return spec, nil
}

func (m *Mapping) Periods() []string {
	codes := make([]string, 0, len(m.periods))
	for code := range m.periods {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

func (m *Mapping) InputFields() []schema.Field {
	return append([]schema.Field(nil), m.inputs...)
}

func (m *Mapping) DailyFields() []schema.Field {
	return append([]schema.Field(nil), m.daily...)
}

func parseInputColumns(node *yaml.Node) ([]schema.Field, error) {
	if node.Kind != yaml.MappingNode {
		return nil, errors.NewConfigError(KeyInputColumns, "must be an object")
	}

	var fields []schema.Field
	for i := 0; i+1 < len(node.Content); i += 2 {
		name, props := node.Content[i].Value, node.Content[i+1]
		key := KeyInputColumns + "." + name
		if props.Kind != yaml.MappingNode {
			return nil, errors.NewConfigError(key, "must be an object with a %s", keyType)
		}

		field := schema.Field{Name: name, Kind: schema.KindText}
		for j := 0; j+1 < len(props.Content); j += 2 {
			prop, v := props.Content[j].Value, props.Content[j+1]
			switch prop {
			case keyType:
				field.SQLType = strings.TrimSpace(v.Value)
			case keyPrimaryKey:
				field.PrimaryKey = v.Value != "false"
			case keyOriginName, keyOrginName:
				field.Origin = v.Value
			}
		}
		if field.SQLType == "" {
			return nil, errors.NewConfigError(key, "missing %s", keyType)
		}
		fields = append(fields, field)
	}

	return fields, nil
}

func parseDailyColumns(node *yaml.Node) ([]schema.Field, error) {
	if node.Kind != yaml.MappingNode {
		return nil, errors.NewConfigError(KeyDailyColumns, "must be an object")
	}

	var fields []schema.Field
	for i := 0; i+1 < len(node.Content); i += 2 {
		name, props := node.Content[i].Value, node.Content[i+1]
		field := schema.Field{Name: name, Kind: schema.KindText}

		if props.Kind == yaml.MappingNode {
			for j := 0; j+1 < len(props.Content); j += 2 {
				prop := props.Content[j].Value
				if prop != keyCLRType && prop != keyType {
					continue
				}
				kind, err := parseKind(props.Content[j+1].Value)
				if err != nil {
					return nil, errors.NewConfigError(KeyDailyColumns+"."+name, "%v", err)
				}
				field.Kind = kind
			}
		}
		fields = append(fields, field)
	}

	return fields, nil
}

func parseKind(declared string) (schema.Kind, error) {
	switch strings.ToLower(strings.TrimSpace(declared)) {
	case "", "system.string", "string", "text":
		return schema.KindText, nil
	case "system.decimal", "decimal", "numeric":
		return schema.KindDecimal, nil
	default:
		return schema.KindText, fmt.Errorf("unsupported value type %q", declared)
	}
}

func isPeriodSpec(node *yaml.Node) bool {
	if node.Kind != yaml.MappingNode {
		return false
	}
	for i := 0; i < len(node.Content); i += 2 {
		if node.Content[i].Value == keyValueStart {
			return true
		}
	}
	return false
}

func parsePeriod(code string, node *yaml.Node) (schema.PeriodSpec, error) {
	props := make(map[string]string)
	for i := 0; i+1 < len(node.Content); i += 2 {
		props[node.Content[i].Value] = node.Content[i+1].Value
	}

	spec := schema.PeriodSpec{Code: code}
	var err error
	if spec.Value, err = parseRange(code, schema.TagValue, props, keyValueStart, keyValueEnd); err != nil {
		return spec, err
	}
	if spec.PTD, err = parseRange(code, schema.TagPTD, props, keyPTDStart, keyPTDEnd); err != nil {
		return spec, err
	}
	if spec.Volume, err = parseRange(code, schema.TagVolume, props, keyVolumeStart, keyVolumeEnd); err != nil {
		return spec, err
	}

	raw, ok := props[keyDateLengh]
	if !ok {
		raw, ok = props[keyDateLength]
	}
	if !ok {
		return spec, errors.NewConfigError(code+"."+keyDateLength, "missing")
	}
	spec.DatePartLength, err = strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || spec.DatePartLength <= 0 {
		return spec, errors.NewConfigError(code+"."+keyDateLength, "must be a positive integer, got %q", raw)
	}

	return spec, nil
}

func parseRange(code, tag string, props map[string]string, startKey, endKey string) (schema.Range, error) {
	rng := schema.Range{Tag: tag}

	start, ok := props[startKey]
	if !ok {
		return rng, errors.NewConfigError(code+"."+startKey, "missing")
	}
	end, ok := props[endKey]
	if !ok {
		return rng, errors.NewConfigError(code+"."+endKey, "missing")
	}

	var err error
	if rng.Start, err = excel.ColumnIndex(start); err != nil {
		return rng, errors.NewConfigError(code+"."+startKey, "%v", err)
	}
	if rng.End, err = excel.ColumnIndex(end); err != nil {
		return rng, errors.NewConfigError(code+"."+endKey, "%v", err)
	}
	if rng.End < rng.Start {
		return rng, errors.NewConfigError(code+"."+endKey, "%s ends before %s", end, start)
	}

	return rng, nil
}
