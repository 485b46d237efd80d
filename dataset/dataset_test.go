package dataset

import (
	"errors"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"quote-codex/quote"
)

func TestWriteRead_Embedded(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", QuotesFile)
	records := []quote.Record{
		{ID: "0", Quote: "Be the change.", Author: "Mahatma Gandhi", Embedding: []float32{0.5, -1.25, 3}},
		{ID: "1", Quote: "Line one,\nline \"two\"", Author: "Leo Tolstoy", BookTitle: "A Calendar of Wisdom", Embedding: []float32{1e-7, 0, 2}},
	}

	if err := Write(path, records, EmbeddedColumns); err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	got, err := Read(path)
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}
	if !reflect.DeepEqual(got, records) {
		t.Errorf("expected %+v, got %+v", records, got)
	}
}

func TestWrite_ColumnsSelectOutput(t *testing.T) {
	var b strings.Builder
	records := []quote.Record{{ID: "7", Quote: "q", Author: "a", BookTitle: "b", Embedding: []float32{1}}}

	if err := Encode(&b, records, CalendarColumns); err != nil {
		t.Fatal(err)
	}
	want := "Quote,Author\nq,a\n"
	if b.String() != want {
		t.Errorf("expected %q, got %q", want, b.String())
	}
}

func TestDecode_PositionalIDs(t *testing.T) {
	input := "Quote,Author,Embeddings\nfirst,A,\"[1, 2]\"\nsecond,B,\"[3, 4]\"\n"

	records, err := Decode(strings.NewReader(input))
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	for i, want := range []string{"0", "1"} {
		if records[i].ID != want {
			t.Errorf("record %d: expected ID %q, got %q", i, want, records[i].ID)
		}
	}
	if !reflect.DeepEqual(records[1].Embedding, []float32{3, 4}) {
		t.Errorf("unexpected embedding %v", records[1].Embedding)
	}
	if records[0].BookTitle != "" {
		t.Errorf("expected empty book title, got %q", records[0].BookTitle)
	}
}

func TestDecode_Reduced(t *testing.T) {
	input := "ID,Quote,Author,Book Title,Embeddings_2D,Embeddings_3D\n" +
		"x1,q,a,,\"[0.25, 1.5]\",\"[1, 2, 3]\"\n"

	records, err := Decode(strings.NewReader(input))
	if err != nil {
		t.Fatal(err)
	}
	r := records[0]
	if r.ID != "x1" || r.Embedding != nil {
		t.Errorf("unexpected record %+v", r)
	}
	if !reflect.DeepEqual(r.Embedding2D, []float64{0.25, 1.5}) || !reflect.DeepEqual(r.Embedding3D, []float64{1, 2, 3}) {
		t.Errorf("unexpected projections %v %v", r.Embedding2D, r.Embedding3D)
	}
}

func TestDecode_Errors(t *testing.T) {
	if _, err := Decode(strings.NewReader("Author\nsomeone\n")); !errors.Is(err, ErrMissingColumn) {
		t.Errorf("expected ErrMissingColumn, got %v", err)
	}
	if _, err := Decode(strings.NewReader("Quote,Embeddings\nq,\"[1, x]\"\n")); err == nil {
		t.Error("expected an error for a malformed vector")
	}
	if _, err := Decode(strings.NewReader("")); err == nil {
		t.Error("expected an error for an empty file")
	}
}

func TestParseVector(t *testing.T) {
	tests := []struct {
		input string
		want  []float64
	}{
		{"", nil},
		{"[]", nil},
		{"[1]", []float64{1}},
		{"[1.5,-2.25 , 3e2]", []float64{1.5, -2.25, 300}},
		{" [0, 0] ", []float64{0, 0}},
	}

	for _, test := range tests {
		got, err := ParseVector[float64](test.input, 64)
		if err != nil {
			t.Errorf("ParseVector(%q) error: %v", test.input, err)
			continue
		}
		if !reflect.DeepEqual(got, test.want) {
			t.Errorf("ParseVector(%q) = %v, want %v", test.input, got, test.want)
		}
	}
}

func TestFormatVector(t *testing.T) {
	if got := FormatVector([]float64{1, -0.5, 2.25}, 64); got != "[1, -0.5, 2.25]" {
		t.Errorf("unexpected format %q", got)
	}
	if got := FormatVector([]float32(nil), 32); got != "" {
		t.Errorf("expected empty cell for nil vector, got %q", got)
	}
}
