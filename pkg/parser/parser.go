package parser

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

// Kind identifies the table a document belongs to.
type Kind string

const (
	KindDataset      Kind = "dataset"
	KindAntenna      Kind = "antenna"
	KindFeed         Kind = "feed"
	KindField        Kind = "field"
	KindSpWindow     Kind = "spw"
	KindPolarization Kind = "polarization"
	KindDataDesc     Kind = "datadesc"
	KindRow          Kind = "row"

	// Written by the engine, never part of a dataset.
	KindChunk    Kind = "chunk"
	KindBaseline Kind = "baseline"
)

// Known reports whether k is one of the document kinds above.
func (k Kind) Known() bool {
	switch k {
	case KindDataset, KindAntenna, KindFeed, KindField, KindSpWindow, KindPolarization, KindDataDesc, KindRow:
		return true
	}
	return false
}

// Document is a single JSON object tagged with a "kind" field.
type Document struct {
	Kind Kind
	Body json.RawMessage
	// Line is the 1-based line (JSONL) or element (JSON) number.
	Line int
}

// Decode unmarshals the document body into v.
func (d Document) Decode(v interface{}) error {
	if err := json.Unmarshal(d.Body, v); err != nil {
		return fmt.Errorf("document %d (%s): %w", d.Line, d.Kind, err)
	}
	return nil
}

// Parser reads dataset documents from JSON and JSONL files.
type Parser struct {
	file    *os.File
	isJSONL bool
	tmpFile string // Path to temporary file, if created

	decoder   *json.Decoder
	scanner   *bufio.Scanner
	bufReader *bufio.Reader

	startArrayChecked bool
	inArray           bool
	count             int
}

// NewParser creates a new parser for the given file
// Special cases:
// - Empty string or "-" reads from stdin
// - Strings starting with '{' or '[' are treated as inline JSON
func NewParser(filename string) (*Parser, error) {
	var file *os.File
	var err error
	var isJSONL bool
	var tmpFile string

	if len(filename) > 0 && (filename[0] == '{' || filename[0] == '[') {
		tmpFileHandle, err := os.CreateTemp("", "visdata-inline-*.json")
		if err != nil {
			return nil, fmt.Errorf("failed to create temp file: %w", err)
		}
		tmpFile = tmpFileHandle.Name()
		if _, err := tmpFileHandle.WriteString(filename); err != nil {
			tmpFileHandle.Close()
			os.Remove(tmpFile)
			return nil, fmt.Errorf("failed to write inline JSON: %w", err)
		}
		if _, err := tmpFileHandle.Seek(0, 0); err != nil {
			tmpFileHandle.Close()
			os.Remove(tmpFile)
			return nil, fmt.Errorf("failed to seek: %w", err)
		}
		file = tmpFileHandle
	} else if filename == "" || filename == "-" {
		file = os.Stdin
		// stdin carries one document per line
		isJSONL = true
	} else {
		file, err = os.Open(filename)
		if err != nil {
			return nil, fmt.Errorf("failed to open file: %w", err)
		}
		isJSONL = strings.HasSuffix(filename, ".jsonl")
	}

	p := &Parser{
		file:    file,
		isJSONL: isJSONL,
		tmpFile: tmpFile,
	}
	p.initReader()
	return p, nil
}

func (p *Parser) initReader() {
	if p.isJSONL {
		p.scanner = bufio.NewScanner(p.file)
		// rows with many channels produce long lines
		p.scanner.Buffer(make([]byte, 64*1024), 64*1024*1024)
	} else {
		p.bufReader = bufio.NewReader(p.file)
		p.decoder = json.NewDecoder(p.bufReader)
	}
}

// Close closes the underlying file and cleans up any temporary files
func (p *Parser) Close() error {
	var err error
	if p.file != os.Stdin {
		err = p.file.Close()
	}
	if p.tmpFile != "" {
		os.Remove(p.tmpFile)
	}
	return err
}

// IsJSONL returns whether the parser is treating the file as JSONL
func (p *Parser) IsJSONL() bool {
	return p.isJSONL
}

// Read returns the next document, or io.EOF.
func (p *Parser) Read() (Document, error) {
	raw, err := p.next()
	if err != nil {
		return Document{}, err
	}
	p.count++
	var head struct {
		Kind Kind `json:"kind"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return Document{}, fmt.Errorf("document %d: %w", p.count, err)
	}
	if !head.Kind.Known() {
		return Document{}, fmt.Errorf("document %d: unknown kind %q", p.count, head.Kind)
	}
	return Document{Kind: head.Kind, Body: raw, Line: p.count}, nil
}

func (p *Parser) next() (json.RawMessage, error) {
	if p.isJSONL {
		for {
			if !p.scanner.Scan() {
				if err := p.scanner.Err(); err != nil {
					return nil, err
				}
				return nil, io.EOF
			}
			line := bytes.TrimSpace(p.scanner.Bytes())
			if len(line) == 0 {
				continue
			}
			return append(json.RawMessage(nil), line...), nil
		}
	}

	if !p.startArrayChecked {
		for {
			b, err := p.bufReader.Peek(1)
			if err != nil {
				return nil, err
			}
			c := b[0]
			if c == ' ' || c == '\n' || c == '\t' || c == '\r' {
				p.bufReader.ReadByte()
				continue
			}
			if c == '[' {
				// the decoder has to see the delimiter to accept the
				// separators between elements
				if _, err := p.decoder.Token(); err != nil {
					return nil, fmt.Errorf("failed to read array start: %w", err)
				}
				p.inArray = true
			}
			p.startArrayChecked = true
			break
		}
	}

	if p.inArray && !p.decoder.More() {
		t, err := p.decoder.Token()
		if err != nil {
			return nil, err
		}
		if delim, ok := t.(json.Delim); ok && delim == ']' {
			p.inArray = false
			return nil, io.EOF
		}
		return nil, fmt.Errorf("expected array end, got %v", t)
	}

	var raw json.RawMessage
	if err := p.decoder.Decode(&raw); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("failed to decode JSON document: %w", err)
	}
	if len(raw) == 0 || raw[0] != '{' {
		return nil, fmt.Errorf("document %d is not an object", p.count+1)
	}
	return raw, nil
}

// ReadAll reads all remaining documents.
func (p *Parser) ReadAll() ([]Document, error) {
	var docs []Document
	err := p.ForEach(func(d Document) error {
		docs = append(docs, d)
		return nil
	})
	return docs, err
}

// ForEach calls fn for each remaining document.
func (p *Parser) ForEach(fn func(Document) error) error {
	for {
		d, err := p.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(d); err != nil {
			return err
		}
	}
}

// Writer emits documents as JSON Lines.
type Writer struct {
	w      io.Writer
	pretty bool
}

// NewWriter creates a writer. Pretty output indents each document and is
// only readable back as a JSON stream, not as JSONL.
func NewWriter(w io.Writer, pretty bool) *Writer {
	return &Writer{w: w, pretty: pretty}
}

// Write encodes v as an object with a leading "kind" field.
func (w *Writer) Write(kind Kind, v interface{}) error {
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if len(body) < 2 || body[0] != '{' {
		return fmt.Errorf("%s document must encode as an object", kind)
	}
	var buf bytes.Buffer
	fmt.Fprintf(&buf, `{"kind":%q`, string(kind))
	if len(body) > 2 {
		buf.WriteByte(',')
	}
	buf.Write(body[1:])

	out := buf.Bytes()
	if w.pretty {
		var indented bytes.Buffer
		if err := json.Indent(&indented, out, "", "  "); err != nil {
			return err
		}
		out = indented.Bytes()
	}
	out = append(out, '\n')
	_, err = w.w.Write(out)
	return err
}

// WriteDocument re-emits a document read by a Parser, keeping its field
// order.
func (w *Writer) WriteDocument(d Document) error {
	var buf bytes.Buffer
	var err error
	if w.pretty {
		err = json.Indent(&buf, d.Body, "", "  ")
	} else {
		err = json.Compact(&buf, d.Body)
	}
	if err != nil {
		return fmt.Errorf("document %d (%s): %w", d.Line, d.Kind, err)
	}
	buf.WriteByte('\n')
	_, err = w.w.Write(buf.Bytes())
	return err
}
