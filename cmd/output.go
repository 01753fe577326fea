package main

import (
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

type format string

const (
	formatJSON format = "json"
	formatYAML format = "yaml"
)

func parseFormat(s string) (format, error) {
	switch format(s) {
	case formatJSON, formatYAML:
		return format(s), nil
	case "yml":
		return formatYAML, nil
	default:
		return "", eris.Errorf("unknown output format %q (want json or yaml)", s)
	}
}

// printer writes command results in the selected format.
type printer struct {
	format format
	w      io.Writer
}

func newPrinter(w io.Writer) *printer {
	f, err := parseFormat(outputFormat)
	if err != nil {
		f = formatJSON
	}
	return &printer{format: f, w: w}
}

// Print encodes v. YAML output goes through JSON first so field names
// match the JSON tags.
func (p *printer) Print(v any) error {
	switch p.format {
	case formatYAML:
		b, err := json.Marshal(v)
		if err != nil {
			return eris.Wrap(err, "output: encode")
		}
		var generic any
		if err := json.Unmarshal(b, &generic); err != nil {
			return eris.Wrap(err, "output: decode")
		}
		enc := yaml.NewEncoder(p.w)
		enc.SetIndent(2)
		if err := enc.Encode(generic); err != nil {
			return eris.Wrap(err, "output: yaml")
		}
		return eris.Wrap(enc.Close(), "output: yaml close")
	default:
		enc := json.NewEncoder(p.w)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(v), "output: json")
	}
}
