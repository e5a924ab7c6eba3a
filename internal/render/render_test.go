package render

import (
	"strings"
	"testing"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatTable, false},
		{"JSON", FormatJSON, false},
		{"yaml", FormatYAML, false},
		{"tsv", FormatTSV, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestRenderTable(t *testing.T) {
	var b strings.Builder
	r := NewRenderer(&b, Options{Format: FormatTable})
	err := r.Render(nil, []string{"ID", "SLUG"}, [][]string{{"1", "marble"}, {"12", "sinks"}})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	want := "ID  SLUG\n--  ------\n1   marble\n12  sinks\n"
	if b.String() != want {
		t.Errorf("unexpected table:\n%q\nwant:\n%q", b.String(), want)
	}
}

func TestRenderStructured(t *testing.T) {
	data := []map[string]any{{"slug": "tiles", "id": 3}}

	var js strings.Builder
	if err := NewRenderer(&js, Options{Format: FormatJSON, Porcelain: true}).Render(data, nil, nil); err != nil {
		t.Fatal(err)
	}
	if js.String() != `[{"id":3,"slug":"tiles"}]`+"\n" {
		t.Errorf("unexpected json %q", js.String())
	}

	var y strings.Builder
	if err := NewRenderer(&y, Options{Format: FormatYAML}).Render(data, nil, nil); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(y.String(), "slug: tiles") {
		t.Errorf("unexpected yaml %q", y.String())
	}

	var tsv strings.Builder
	if err := NewRenderer(&tsv, Options{Format: FormatTSV}).Render(data, []string{"id", "slug"}, [][]string{{"3", "tiles"}}); err != nil {
		t.Fatal(err)
	}
	if tsv.String() != "id\tslug\n3\ttiles\n" {
		t.Errorf("unexpected tsv %q", tsv.String())
	}
}
