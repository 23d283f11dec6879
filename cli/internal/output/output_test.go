package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNewWriter(t *testing.T) {
	tests := []struct {
		name   string
		format string
		want   Format
	}{
		{"json format", "json", FormatJSON},
		{"yaml format", "yaml", FormatYAML},
		{"table format", "table", FormatTable},
		{"unknown defaults to table", "bogus", FormatTable},
		{"empty defaults to table", "", FormatTable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewWriter(tt.format)
			if w.format != tt.want {
				t.Errorf("NewWriter(%q).format = %v, want %v", tt.format, w.format, tt.want)
			}
		})
	}
}

func TestWriter_PrintJSON(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriterTo("json", &buf)

	if err := w.Print(map[string]int{"healthy": 3}); err != nil {
		t.Fatalf("Print() error = %v", err)
	}

	var decoded map[string]int
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded["healthy"] != 3 {
		t.Errorf("decoded[healthy] = %d, want 3", decoded["healthy"])
	}
}

func TestWriter_PrintYAML(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriterTo("yaml", &buf)

	if err := w.Print(map[string]string{"status": "active"}); err != nil {
		t.Fatalf("Print() error = %v", err)
	}
	if !strings.Contains(buf.String(), "status: active") {
		t.Errorf("YAML output = %q", buf.String())
	}
}

func TestWriter_PrintTable(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriterTo("table", &buf)

	table := Table{Headers: []string{"ID", "SEVERITY", "STATUS"}}
	table.AddRow("inc-1", "high", "open")
	table.AddRow("inc-2", "low", "resolved")

	if err := w.Print(table); err != nil {
		t.Fatalf("Print() error = %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("output has %d lines, want 3", len(lines))
	}
	if !strings.Contains(lines[0], "SEVERITY") {
		t.Errorf("header line = %q", lines[0])
	}
	if !strings.Contains(lines[1], "inc-1") || !strings.Contains(lines[2], "resolved") {
		t.Errorf("rows = %q", lines[1:])
	}
}

func TestWriter_TableFormatFallsBackToJSON(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriterTo("table", &buf)

	if err := w.Print(map[string]bool{"active": true}); err != nil {
		t.Fatalf("Print() error = %v", err)
	}
	var decoded map[string]bool
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Errorf("fallback output is not valid JSON: %v", err)
	}
}
