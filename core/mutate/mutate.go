// Package mutate rebuilds the body tree for incipit notes: it strips citation
// markers, brackets their runs with bookmarks, appends the notes section, and
// reduces the endnotes part to its separator entries.
//
// Edits are keyed by stable element identity (the run nodes captured at scan
// time), so application order can never invalidate a not-yet-processed
// position and no positional index needs revalidating mid-mutation.
package mutate

import (
	"sort"
	"strconv"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"

	"github.com/incipitworks/incipit/core/ooxml"
	"github.com/incipitworks/incipit/core/scan"
)

// Style selects the emphasis applied to incipit phrases in the notes section.
type Style int

const (
	// StyleBold renders incipits bold.
	StyleBold Style = iota
	// StyleItalic renders incipits italic.
	StyleItalic
)

// bookmarkIDFloor keeps generated bookmark ids above anything a normal
// document could plausibly contain already.
const bookmarkIDFloor = 1000

var (
	exprBody           = xpath.MustCompile(".//w:body")
	exprBookmarkStarts = xpath.MustCompile(".//w:bookmarkStart")
	exprEndnoteMarks   = xpath.MustCompile(".//w:endnoteReference")
	exprEndnotes       = xpath.MustCompile(".//w:endnote")
)

var reservedNoteIDs = map[string]bool{"0": true, "-1": true}

// Mutator applies the incipit transformation to a parsed document and
// endnotes tree. One Mutator serves exactly one conversion.
type Mutator struct {
	doc      *xmlquery.Node
	endnotes *xmlquery.Node
	style    Style
	nextID   int
}

// New creates a Mutator. The bookmark id counter is seeded above both the
// floor and the highest bookmark id already present in the document.
func New(doc, endnotes *xmlquery.Node, style Style) *Mutator {
	next := bookmarkIDFloor
	for _, bm := range xmlquery.QuerySelectorAll(doc, exprBookmarkStarts) {
		if id, err := strconv.Atoi(bm.SelectAttr("w:id")); err == nil && id >= next {
			next = id + 1
		}
	}
	return &Mutator{doc: doc, endnotes: endnotes, style: style, nextID: next}
}

// Apply performs the full mutation: marker removal and bookmark insertion for
// every reference, notes-section assembly, and endnote cleanup. References
// whose note id has no matching content are skipped entirely, so the output
// never holds a dangling bookmark.
func (m *Mutator) Apply(refs []*scan.Reference, notes map[string]*scan.EndnoteContent) {
	var kept []*scan.Reference
	for _, ref := range refs {
		if _, ok := notes[ref.NoteID]; !ok {
			continue
		}
		m.bracketWithBookmark(ref)
		removeMarker(ref.Run())
		kept = append(kept, ref)
	}
	m.appendNotesSection(kept, notes)
	m.clearEndnotes()
}

// bracketWithBookmark inserts a bookmarkStart/bookmarkEnd pair immediately
// surrounding the marker's run.
func (m *Mutator) bracketWithBookmark(ref *scan.Reference) {
	id := strconv.Itoa(m.nextID)
	m.nextID++

	start := ooxml.Element("bookmarkStart")
	ooxml.SetAttr(start, "w", "id", id)
	ooxml.SetAttr(start, "w", "name", ref.BookmarkName)

	end := ooxml.Element("bookmarkEnd")
	ooxml.SetAttr(end, "w", "id", id)

	ooxml.InsertBefore(ref.Run(), start)
	ooxml.InsertAfter(ref.Run(), end)
}

// removeMarker removes the endnoteReference element from a run. The run
// itself is retained even when left empty; deleting it would destabilize
// sibling formatting.
func removeMarker(run *xmlquery.Node) {
	for _, marker := range xmlquery.QuerySelectorAll(run, exprEndnoteMarks) {
		ooxml.Remove(marker)
	}
}

// appendNotesSection inserts the notes section immediately before the body's
// trailing section properties, or at the very end if none exist: a page
// break, a "Notes" heading, then one paragraph per reference in ascending
// numeric note-id order.
func (m *Mutator) appendNotesSection(refs []*scan.Reference, notes map[string]*scan.EndnoteContent) {
	body := xmlquery.QuerySelector(m.doc, exprBody)
	if body == nil || len(refs) == 0 {
		return
	}

	sectPr := directChild(body, "sectPr")
	insert := func(p *xmlquery.Node) {
		if sectPr != nil {
			ooxml.InsertBefore(sectPr, p)
		} else {
			ooxml.AddChild(body, p)
		}
	}

	insert(pageBreakParagraph())
	insert(headingParagraph("Notes"))

	sorted := make([]*scan.Reference, len(refs))
	copy(sorted, refs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return noteNumber(sorted[i].NoteID) < noteNumber(sorted[j].NoteID)
	})
	for _, ref := range sorted {
		insert(m.noteParagraph(ref, notes[ref.NoteID]))
	}
}

// clearEndnotes removes every real note body from the endnotes part, leaving
// only the reserved separator entries.
func (m *Mutator) clearEndnotes() {
	for _, endnote := range xmlquery.QuerySelectorAll(m.endnotes, exprEndnotes) {
		if !reservedNoteIDs[endnote.SelectAttr("w:id")] {
			ooxml.Remove(endnote)
		}
	}
}

// noteParagraph builds one notes-section paragraph: an italic PAGEREF field
// pointing at the bookmark, two literal spaces, the emphasized incipit, an
// emphasized colon, then the original citation runs with their formatting.
func (m *Mutator) noteParagraph(ref *scan.Reference, content *scan.EndnoteContent) *xmlquery.Node {
	para := ooxml.Element("p")

	ooxml.AddChild(para, italicRun(fldChar("begin")))
	ooxml.AddChild(para, italicRun(instrText(" PAGEREF "+ref.BookmarkName+" \\h ")))
	ooxml.AddChild(para, italicRun(fldChar("separate")))
	ooxml.AddChild(para, italicRun(textElement("##", true)))
	ooxml.AddChild(para, italicRun(fldChar("end")))

	spacer := ooxml.Element("r")
	ooxml.AddChild(spacer, textElement("  ", true))
	ooxml.AddChild(para, spacer)

	ooxml.AddChild(para, m.emphasizedRun(ref.Incipit))
	ooxml.AddChild(para, m.emphasizedRun(": "))

	for _, run := range content.Runs {
		ooxml.AddChild(para, ooxml.Clone(run))
	}
	return para
}

// emphasizedRun builds a run carrying the configured incipit emphasis.
func (m *Mutator) emphasizedRun(text string) *xmlquery.Node {
	tag := "b"
	if m.style == StyleItalic {
		tag = "i"
	}
	run := ooxml.Element("r")
	props := ooxml.Element("rPr")
	ooxml.AddChild(props, ooxml.Element(tag))
	ooxml.AddChild(run, props)
	ooxml.AddChild(run, textElement(text, true))
	return run
}

func italicRun(child *xmlquery.Node) *xmlquery.Node {
	run := ooxml.Element("r")
	props := ooxml.Element("rPr")
	ooxml.AddChild(props, ooxml.Element("i"))
	ooxml.AddChild(run, props)
	ooxml.AddChild(run, child)
	return run
}

func fldChar(kind string) *xmlquery.Node {
	c := ooxml.Element("fldChar")
	ooxml.SetAttr(c, "w", "fldCharType", kind)
	return c
}

func instrText(instruction string) *xmlquery.Node {
	el := ooxml.Element("instrText")
	ooxml.SetAttr(el, "xml", "space", "preserve")
	ooxml.AddChild(el, ooxml.Text(instruction))
	return el
}

func textElement(text string, preserveSpace bool) *xmlquery.Node {
	el := ooxml.Element("t")
	if preserveSpace {
		ooxml.SetAttr(el, "xml", "space", "preserve")
	}
	ooxml.AddChild(el, ooxml.Text(text))
	return el
}

func pageBreakParagraph() *xmlquery.Node {
	para := ooxml.Element("p")
	run := ooxml.Element("r")
	br := ooxml.Element("br")
	ooxml.SetAttr(br, "w", "type", "page")
	ooxml.AddChild(run, br)
	ooxml.AddChild(para, run)
	return para
}

func headingParagraph(text string) *xmlquery.Node {
	para := ooxml.Element("p")
	props := ooxml.Element("pPr")
	style := ooxml.Element("pStyle")
	ooxml.SetAttr(style, "w", "val", "Heading1")
	ooxml.AddChild(props, style)
	ooxml.AddChild(para, props)

	run := ooxml.Element("r")
	ooxml.AddChild(run, textElement(text, false))
	ooxml.AddChild(para, run)
	return para
}

func directChild(parent *xmlquery.Node, local string) *xmlquery.Node {
	for child := parent.FirstChild; child != nil; child = child.NextSibling {
		if ooxml.IsElement(child, "w", local) {
			return child
		}
	}
	return nil
}

func noteNumber(id string) int {
	n, err := strconv.Atoi(id)
	if err != nil {
		return 0
	}
	return n
}
