package display

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/stone-age-io/hostfacts/internal/sysinfo"
	"gopkg.in/yaml.v3"
)

// renderJSON writes an object keyed by field key in field order.
// Unavailable facets are null.
func renderJSON(w io.Writer, info sysinfo.SystemInfo, fields []sysinfo.Field) error {
	data, err := MarshalJSON(info, fields)
	if err != nil {
		return err
	}

	var out bytes.Buffer
	if err := json.Indent(&out, data, "", "  "); err != nil {
		return err
	}
	out.WriteByte('\n')
	_, err = w.Write(out.Bytes())
	return err
}

// MarshalJSON encodes the selected fields as a compact JSON object that
// keeps field order. Unavailable facets are null.
func MarshalJSON(info sysinfo.SystemInfo, fields []sysinfo.Field) ([]byte, error) {
	if len(fields) == 0 {
		fields = sysinfo.AllFields()
	}
	if err := sysinfo.CheckFields(fields); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Key())
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')

		v := info.Get(f)
		if v == sysinfo.Unavailable {
			buf.WriteString("null")
			continue
		}
		value, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// renderYAML writes the same mapping as renderJSON
func renderYAML(w io.Writer, info sysinfo.SystemInfo, fields []sysinfo.Field) error {
	doc := &yaml.Node{Kind: yaml.MappingNode}
	for _, f := range fields {
		key := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: f.Key()}
		value := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: info.Get(f)}
		if info.Get(f) == sysinfo.Unavailable {
			value = &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
		}
		doc.Content = append(doc.Content, key, value)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}
