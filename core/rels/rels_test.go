package rels

import (
	"testing"

	"github.com/incipitworks/incipit/core/errors"
)

const sampleRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles" Target="styles.xml"/>
<Relationship Id="rId3" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/hyperlink" Target="https://example.com/a" TargetMode="External"/>
</Relationships>`

func TestParse(t *testing.T) {
	table, err := Parse([]byte(sampleRels))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if table.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", table.Len())
	}
	id, ok := table.HyperlinkID("https://example.com/a")
	if !ok || id != "rId3" {
		t.Errorf("HyperlinkID() = %q, %v; want rId3, true", id, ok)
	}
	if _, ok := table.HyperlinkID("styles.xml"); ok {
		t.Error("HyperlinkID() matched a non-hyperlink entry")
	}
}

func TestParseMalformed(t *testing.T) {
	_, err := Parse([]byte("<Relationships><oops"))
	if err == nil {
		t.Fatal("Parse() accepted malformed XML")
	}
	if !errors.Is(err, errors.ErrMalformedRelationships) {
		t.Errorf("Parse() error = %v, want ErrMalformedRelationships", err)
	}
}

func TestAddHyperlinkMintsAboveExisting(t *testing.T) {
	table, err := Parse([]byte(sampleRels))
	if err != nil {
		t.Fatal(err)
	}
	if table.Dirty() {
		t.Error("freshly parsed table reported dirty")
	}

	id := table.AddHyperlink("https://example.com/b")
	if id != "rId4" {
		t.Errorf("AddHyperlink() = %q, want rId4 (above existing rId3)", id)
	}
	if !table.Dirty() {
		t.Error("table not dirty after adding an entry")
	}
}

func TestAddHyperlinkDeduplicates(t *testing.T) {
	table := New()
	first := table.AddHyperlink("https://example.com/x")
	second := table.AddHyperlink("https://example.com/x")
	if first != second {
		t.Errorf("same URL minted two ids: %q, %q", first, second)
	}
	if table.Len() != 1 {
		t.Errorf("Len() = %d, want 1", table.Len())
	}

	other := table.AddHyperlink("https://example.com/y")
	if other == first {
		t.Errorf("distinct URLs shared id %q", other)
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	table, err := Parse([]byte(sampleRels))
	if err != nil {
		t.Fatal(err)
	}
	table.AddHyperlink("https://example.com/b")

	out, err := table.Marshal()
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}

	reparsed, err := Parse(out)
	if err != nil {
		t.Fatalf("Parse(Marshal()) error: %v", err)
	}
	if reparsed.Len() != 3 {
		t.Fatalf("round trip Len() = %d, want 3", reparsed.Len())
	}
	if id, ok := reparsed.HyperlinkID("https://example.com/b"); !ok || id != "rId4" {
		t.Errorf("round trip HyperlinkID() = %q, %v", id, ok)
	}
	// Next minted id continues past everything persisted.
	if id := reparsed.AddHyperlink("https://example.com/c"); id != "rId5" {
		t.Errorf("post-round-trip AddHyperlink() = %q, want rId5", id)
	}
}
