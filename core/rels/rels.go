// Package rels manages per-part relationship tables: the metadata mapping
// short ids (rId1, rId2, ...) to external targets such as hyperlink URLs.
// Within one part each distinct URL maps to exactly one relationship id.
package rels

import (
	"encoding/xml"
	"regexp"
	"sort"
	"strconv"

	"github.com/incipitworks/incipit/core/errors"
)

// Relationship type and mode constants from the OPC standard.
const (
	NSPackageRelationships = "http://schemas.openxmlformats.org/package/2006/relationships"
	TypeHyperlink          = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/hyperlink"
	ModeExternal           = "External"
)

// Relationship is a single table entry.
type Relationship struct {
	ID     string `xml:"Id,attr"`
	Type   string `xml:"Type,attr"`
	Target string `xml:"Target,attr"`
	Mode   string `xml:"TargetMode,attr,omitempty"`
}

type relationshipsXML struct {
	XMLName xml.Name       `xml:"Relationships"`
	Xmlns   string         `xml:"xmlns,attr"`
	Entries []Relationship `xml:"Relationship"`
}

var ridPattern = regexp.MustCompile(`^rId(\d+)$`)

// Table holds one part's relationships with URL deduplication for hyperlink
// entries. Scoped to a single conversion pass; never shared.
type Table struct {
	entries  []Relationship
	byTarget map[string]string // hyperlink target -> id
	next     int               // next numeric id suffix to mint
	dirty    bool
}

// New returns an empty table minting ids from rId1.
func New() *Table {
	return &Table{byTarget: make(map[string]string), next: 1}
}

// Parse reads a persisted relationship table. Existing ids are tracked so
// newly minted ids never collide with the highest-numbered entry. A parse
// failure yields a MalformedRelationshipsError; callers are expected to
// absorb it and continue with an empty table.
func Parse(data []byte) (*Table, error) {
	var doc relationshipsXML
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, errors.NewMalformedRelationships("", err)
	}

	t := New()
	for _, entry := range doc.Entries {
		t.entries = append(t.entries, entry)
		if entry.Type == TypeHyperlink {
			if _, seen := t.byTarget[entry.Target]; !seen {
				t.byTarget[entry.Target] = entry.ID
			}
		}
		if m := ridPattern.FindStringSubmatch(entry.ID); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil && n >= t.next {
				t.next = n + 1
			}
		}
	}
	return t, nil
}

// HyperlinkID returns the relationship id already assigned to a URL.
func (t *Table) HyperlinkID(url string) (string, bool) {
	id, ok := t.byTarget[url]
	return id, ok
}

// AddHyperlink returns the relationship id for a URL, minting a new external
// hyperlink entry only when the URL has no id yet.
func (t *Table) AddHyperlink(url string) string {
	if id, ok := t.byTarget[url]; ok {
		return id
	}
	id := "rId" + strconv.Itoa(t.next)
	t.next++
	t.entries = append(t.entries, Relationship{
		ID:     id,
		Type:   TypeHyperlink,
		Target: url,
		Mode:   ModeExternal,
	})
	t.byTarget[url] = id
	t.dirty = true
	return id
}

// Len returns the number of entries in the table.
func (t *Table) Len() int {
	return len(t.entries)
}

// Dirty reports whether the table gained entries since it was loaded.
func (t *Table) Dirty() bool {
	return t.dirty
}

// Marshal serializes the table in ascending id order with the standard part
// declaration.
func (t *Table) Marshal() ([]byte, error) {
	entries := make([]Relationship, len(t.entries))
	copy(entries, t.entries)
	sort.SliceStable(entries, func(i, j int) bool {
		ni, iNum := ridNumber(entries[i].ID)
		nj, jNum := ridNumber(entries[j].ID)
		if iNum && jNum {
			return ni < nj
		}
		if iNum != jNum {
			return iNum
		}
		return entries[i].ID < entries[j].ID
	})

	doc := relationshipsXML{Xmlns: NSPackageRelationships, Entries: entries}
	body, err := xml.Marshal(doc)
	if err != nil {
		return nil, errors.Wrap(err, "marshaling relationships")
	}
	header := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\r\n"
	return append([]byte(header), body...), nil
}

func ridNumber(id string) (int, bool) {
	m := ridPattern.FindStringSubmatch(id)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}
