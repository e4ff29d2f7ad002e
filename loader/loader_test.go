package loader

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/cdehaan/lattice/engine"
)

// stubEngine is a minimal LayoutEngine for load tests.
type stubEngine struct {
	pages    int
	countErr error
	sizeErr  error
}

func (s *stubEngine) PageCount() (int, error) {
	return s.pages, s.countErr
}

func (s *stubEngine) PageSize(index int) (float64, float64, error) {
	if s.sizeErr != nil {
		return 0, 0, s.sizeErr
	}
	return 612, 792, nil
}

func (s *stubEngine) PageGeometry(ctx context.Context, index int) (*engine.PageGeometry, error) {
	return nil, fmt.Errorf("not implemented")
}

func validPDFBytes() []byte {
	return []byte("%PDF-1.4\nsome content\n%%EOF\n")
}

func TestValidate_RejectsMalformedInput(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"too short", []byte("%PDF")},
		{"wrong magic", []byte("GIF89a i am not a pdf %%EOF")},
		{"missing eof", []byte("%PDF-1.7\nbody without terminator")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.data)
			if err == nil {
				t.Fatal("Expected validation error")
			}
			if !errors.Is(err, ErrInvalidDocument) {
				t.Errorf("Expected ErrInvalidDocument, got %v", err)
			}
		})
	}
}

func TestValidate_AcceptsWellFormedHeaderAndTrailer(t *testing.T) {
	if err := Validate(validPDFBytes()); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
}

func TestLoad_BuildsDocument(t *testing.T) {
	doc, err := Load(validPDFBytes(), &stubEngine{pages: 3})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if doc.PageCount() != 3 {
		t.Errorf("Expected 3 pages, got %d", doc.PageCount())
	}
	if doc.Hash() == "" || len(doc.Hash()) != 64 {
		t.Errorf("Expected hex sha256 hash, got %q", doc.Hash())
	}
	page, ok := doc.Page(1)
	if !ok || page.Width != 612 || page.Height != 792 {
		t.Errorf("Unexpected page info: %+v", page)
	}
}

func TestLoad_HashIsDeterministic(t *testing.T) {
	a, err := Load(validPDFBytes(), &stubEngine{pages: 1})
	if err != nil {
		t.Fatal(err)
	}
	b, err := Load(validPDFBytes(), &stubEngine{pages: 1})
	if err != nil {
		t.Fatal(err)
	}
	if a.Hash() != b.Hash() {
		t.Errorf("Hashes differ for identical bytes: %s vs %s", a.Hash(), b.Hash())
	}
}

func TestLoad_UnreadablePages(t *testing.T) {
	tests := []struct {
		name string
		eng  *stubEngine
	}{
		{"count failure", &stubEngine{countErr: fmt.Errorf("broken xref")}},
		{"zero pages", &stubEngine{pages: 0}},
		{"size failure", &stubEngine{pages: 2, sizeErr: fmt.Errorf("bad page object")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(validPDFBytes(), tt.eng)
			if !errors.Is(err, ErrUnreadable) {
				t.Errorf("Expected ErrUnreadable, got %v", err)
			}
		})
	}
}

func TestLoad_InvalidNeverPartiallyLoads(t *testing.T) {
	doc, err := Load([]byte("not a pdf at all"), &stubEngine{pages: 5})
	if doc != nil {
		t.Error("Expected nil document for invalid input")
	}
	if !errors.Is(err, ErrInvalidDocument) {
		t.Errorf("Expected ErrInvalidDocument, got %v", err)
	}
}
