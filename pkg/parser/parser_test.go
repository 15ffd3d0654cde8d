package parser

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestNewParser(t *testing.T) {
	parser, err := NewParser(writeFile(t, "test.json", `[{"kind": "antenna", "name": "ak01"}]`))
	if err != nil {
		t.Fatalf("NewParser failed: %v", err)
	}
	defer parser.Close()

	if parser.IsJSONL() {
		t.Error("Expected JSON file to not be detected as JSONL")
	}
}

func TestReadJSON(t *testing.T) {
	content := `[{"kind": "antenna", "name": "ak01"}, {"kind": "antenna", "name": "ak02"}]`
	parser, err := NewParser(writeFile(t, "test.json", content))
	if err != nil {
		t.Fatal(err)
	}
	defer parser.Close()

	docs, err := parser.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("Expected 2 documents, got %d", len(docs))
	}

	var ant struct {
		Name string `json:"name"`
	}
	if err := docs[0].Decode(&ant); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if ant.Name != "ak01" {
		t.Errorf("Expected first antenna ak01, got %s", ant.Name)
	}
	if docs[1].Line != 2 {
		t.Errorf("Expected second document at position 2, got %d", docs[1].Line)
	}
}

func TestReadJSONArrayLayouts(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []Kind
	}{
		{"empty", `[]`, nil},
		{"single", `[{"kind": "dataset"}]`, []Kind{KindDataset}},
		{"indented", "\n  [\n\t{\"kind\": \"dataset\"},\n\t{\"kind\": \"antenna\"} ,\n\t{\"kind\": \"row\"}\n]\n",
			[]Kind{KindDataset, KindAntenna, KindRow}},
		{"no array", `{"kind": "dataset"} {"kind": "row"}`, []Kind{KindDataset, KindRow}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parser, err := NewParser(writeFile(t, "test.json", tt.content))
			if err != nil {
				t.Fatal(err)
			}
			defer parser.Close()
			docs, err := parser.ReadAll()
			if err != nil {
				t.Fatalf("ReadAll failed: %v", err)
			}
			if len(docs) != len(tt.want) {
				t.Fatalf("got %d documents, want %d", len(docs), len(tt.want))
			}
			for i, d := range docs {
				if d.Kind != tt.want[i] || d.Line != i+1 {
					t.Errorf("document %d = %s at %d", i, d.Kind, d.Line)
				}
			}
		})
	}
}

func TestReadJSONL(t *testing.T) {
	content := `{"kind": "dataset", "name": "sim"}
{"kind": "row", "time": 1.5}`
	parser, err := NewParser(writeFile(t, "test.jsonl", content))
	if err != nil {
		t.Fatal(err)
	}
	defer parser.Close()

	if !parser.IsJSONL() {
		t.Error("Expected JSONL file to be detected as JSONL")
	}

	docs, err := parser.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("Expected 2 documents, got %d", len(docs))
	}
	if docs[0].Kind != KindDataset || docs[1].Kind != KindRow {
		t.Errorf("Unexpected kinds %s, %s", docs[0].Kind, docs[1].Kind)
	}
}

func TestReadErrors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"malformed JSON", "bad.json", `[{"kind": "row", "time": 1}, {"kind": "row"`},
		{"malformed JSONL", "bad.jsonl", "{\"kind\": \"row\"}\n{\"kind\": \"row\", \"time\": 2\n"},
		{"unknown kind", "kind.jsonl", `{"kind": "weather"}`},
		{"missing kind", "nokind.jsonl", `{"time": 1}`},
		{"not an object", "array.json", `[[1, 2]]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parser, err := NewParser(writeFile(t, tt.file, tt.content))
			if err != nil {
				t.Fatal(err)
			}
			defer parser.Close()
			if _, err := parser.ReadAll(); err == nil {
				t.Error("Expected error, got nil")
			}
		})
	}
}

func TestReadJSONLEmptyLines(t *testing.T) {
	content := "{\"kind\": \"field\"}\n\n   \n{\"kind\": \"field\"}\n"
	parser, err := NewParser(writeFile(t, "empty_lines.jsonl", content))
	if err != nil {
		t.Fatal(err)
	}
	defer parser.Close()

	docs, err := parser.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(docs) != 2 {
		t.Errorf("Expected 2 documents, got %d", len(docs))
	}
}

func TestReadJSONConcatenated(t *testing.T) {
	parser, err := NewParser(writeFile(t, "concat.json", `{"kind": "spw"}{"kind": "datadesc"}`))
	if err != nil {
		t.Fatal(err)
	}
	defer parser.Close()

	docs, err := parser.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(docs) != 2 {
		t.Errorf("Expected 2 documents, got %d", len(docs))
	}
}

func TestInlineJSON(t *testing.T) {
	parser, err := NewParser(`[{"kind": "polarization"}, {"kind": "feed"}]`)
	if err != nil {
		t.Fatal(err)
	}
	defer parser.Close()

	docs, err := parser.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(docs) != 2 {
		t.Errorf("Expected 2 documents, got %d", len(docs))
	}
	if parser.IsJSONL() {
		t.Error("Expected inline JSON to not be detected as JSONL")
	}
}

func TestEmptyFile(t *testing.T) {
	parser, err := NewParser(writeFile(t, "empty.json", ""))
	if err != nil {
		t.Fatal(err)
	}
	defer parser.Close()

	docs, err := parser.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed for empty file: %v", err)
	}
	if len(docs) != 0 {
		t.Errorf("Expected 0 documents for empty file, got %d", len(docs))
	}
}

func TestReadStreaming(t *testing.T) {
	parser, err := NewParser(writeFile(t, "stream.jsonl", "{\"kind\":\"row\",\"scan\":1}\n{\"kind\":\"row\",\"scan\":2}\n{\"kind\":\"row\",\"scan\":3}"))
	if err != nil {
		t.Fatal(err)
	}
	defer parser.Close()

	var count int
	for {
		doc, err := parser.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Read failed: %v", err)
		}
		count++
		var row struct {
			Scan int `json:"scan"`
		}
		if err := doc.Decode(&row); err != nil {
			t.Fatal(err)
		}
		if row.Scan != count {
			t.Errorf("Expected scan %d, got %d", count, row.Scan)
		}
	}
	if count != 3 {
		t.Errorf("Expected 3 documents, got %d", count)
	}
}

func TestWriterRoundTrip(t *testing.T) {
	type antenna struct {
		Name     string     `json:"name"`
		Position [3]float64 `json:"position"`
	}

	var buf bytes.Buffer
	w := NewWriter(&buf, false)
	if err := w.Write(KindAntenna, antenna{Name: "ak01", Position: [3]float64{1, 2, 3}}); err != nil {
		t.Fatal(err)
	}
	if err := w.Write(KindDataDesc, struct{}{}); err != nil {
		t.Fatal(err)
	}
	if err := w.Write(KindRow, []int{1}); err == nil {
		t.Error("Expected error for non-object document")
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("Expected 2 lines, got %d: %q", len(lines), buf.String())
	}
	if lines[1] != `{"kind":"datadesc"}` {
		t.Errorf("Unexpected empty document encoding %s", lines[1])
	}

	path := filepath.Join(t.TempDir(), "out.jsonl")
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
	parser, err := NewParser(path)
	if err != nil {
		t.Fatal(err)
	}
	defer parser.Close()
	docs, err := parser.ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	var got antenna
	if err := docs[0].Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.Name != "ak01" || got.Position[2] != 3 {
		t.Errorf("Round trip mismatch: %+v", got)
	}
}

func TestWriteDocument(t *testing.T) {
	content := `[{"kind": "field", "name": "src",  "time": 1.5},
  {"kind": "antenna", "name": "ak01"}]`
	p, err := NewParser(writeFile(t, "test.json", content))
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	var buf bytes.Buffer
	w := NewWriter(&buf, false)
	if err := p.ForEach(w.WriteDocument); err != nil {
		t.Fatalf("WriteDocument failed: %v", err)
	}
	want := `{"kind":"field","name":"src","time":1.5}` + "\n" + `{"kind":"antenna","name":"ak01"}` + "\n"
	if buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}
}
