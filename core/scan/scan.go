// Package scan walks parsed document trees to locate citation markers and to
// lift endnote content out of the endnotes part. Scanning has no side
// effects: it only produces reference lists and content clones.
package scan

import (
	"strings"
	"unicode/utf8"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"

	"github.com/incipitworks/incipit/core/ooxml"
)

// contextBudget caps how many characters of preceding-paragraph text are
// prepended to a reference's context window.
const contextBudget = 200

// maxContextParagraphs bounds how many paragraphs the backward walk visits.
const maxContextParagraphs = 4

// reservedNoteIDs are the separator and continuation-separator entries that
// carry no citation content.
var reservedNoteIDs = map[string]bool{"0": true, "-1": true}

var (
	exprBody        = xpath.MustCompile(".//w:body")
	exprParagraphs  = xpath.MustCompile(".//w:p")
	exprRuns        = xpath.MustCompile(".//w:r")
	exprEndnoteMark = xpath.MustCompile(".//w:endnoteReference")
	exprEndnotes    = xpath.MustCompile(".//w:endnote")
	exprNoteRef     = xpath.MustCompile(".//w:endnoteRef")
)

// Reference records one citation marker found in the body.
type Reference struct {
	NoteID         string
	ParagraphIndex int
	RunIndex       int
	TextBefore     string
	TextAfter      string

	// Filled in by a later pass.
	Incipit      string
	BookmarkName string

	run *xmlquery.Node
}

// Run returns the marker's run node. The node is the reference's stable
// identity inside the body tree: mutations keyed on it stay valid no matter
// how siblings shift.
func (r *Reference) Run() *xmlquery.Node {
	return r.run
}

// References finds every citation marker in the body, in document order,
// together with a context window of surrounding plain text.
func References(doc *xmlquery.Node) []*Reference {
	body := xmlquery.QuerySelector(doc, exprBody)
	if body == nil {
		return nil
	}

	paragraphs := xmlquery.QuerySelectorAll(body, exprParagraphs)
	var refs []*Reference

	for paraIdx, para := range paragraphs {
		runs := xmlquery.QuerySelectorAll(para, exprRuns)

		texts := make([]string, len(runs))
		var full strings.Builder
		for i, run := range runs {
			texts[i] = ooxml.RunText(run)
			full.WriteString(texts[i])
		}
		fullText := full.String()

		for runIdx, run := range runs {
			marker := xmlquery.QuerySelector(run, exprEndnoteMark)
			if marker == nil {
				continue
			}
			noteID := marker.SelectAttr("w:id")
			if noteID == "" || reservedNoteIDs[noteID] {
				continue
			}

			runStart := 0
			for i := 0; i < runIdx; i++ {
				runStart += len(texts[i])
			}

			refs = append(refs, &Reference{
				NoteID:         noteID,
				ParagraphIndex: paraIdx,
				RunIndex:       runIdx,
				TextBefore:     contextBefore(paragraphs, paraIdx) + fullText[:runStart],
				TextAfter:      fullText[runStart:],
				run:            run,
			})
		}
	}
	return refs
}

// contextBefore gathers text from the nearest preceding paragraphs, walked
// backward, stopping once the character budget fills. Citations often sit at
// the top of a paragraph; without this the extractor would see no context at
// all across a paragraph break.
func contextBefore(paragraphs []*xmlquery.Node, current int) string {
	var context string
	lowest := current - maxContextParagraphs
	if lowest < 0 {
		lowest = 0
	}
	for i := current - 1; i >= lowest; i-- {
		var para strings.Builder
		for _, run := range xmlquery.QuerySelectorAll(paragraphs[i], exprRuns) {
			para.WriteString(ooxml.RunText(run))
		}
		context = para.String() + " " + context
		if utf8.RuneCountInString(context) >= contextBudget {
			break
		}
	}
	if utf8.RuneCountInString(context) > contextBudget {
		runes := []rune(context)
		context = string(runes[len(runes)-contextBudget:])
	}
	return context
}

// EndnoteContent holds one endnote's text and formatting, detached from the
// source tree.
type EndnoteContent struct {
	NoteID    string
	PlainText string
	// Runs are structural clones of the note's formatted runs, ordered and
	// independently owned: mutating the output document cannot corrupt the
	// source tree, and vice versa.
	Runs []*xmlquery.Node
}

// Endnotes extracts the content of every non-separator endnote, keyed by
// note id. Runs holding the note's own reference mark are skipped.
func Endnotes(doc *xmlquery.Node) map[string]*EndnoteContent {
	notes := make(map[string]*EndnoteContent)

	for _, endnote := range xmlquery.QuerySelectorAll(doc, exprEndnotes) {
		noteID := endnote.SelectAttr("w:id")
		if noteID == "" || reservedNoteIDs[noteID] {
			continue
		}

		content := &EndnoteContent{NoteID: noteID}
		var plain strings.Builder
		for _, run := range xmlquery.QuerySelectorAll(endnote, exprRuns) {
			if xmlquery.QuerySelector(run, exprNoteRef) != nil {
				continue
			}
			content.Runs = append(content.Runs, ooxml.Clone(run))
			plain.WriteString(ooxml.RunText(run))
		}
		content.PlainText = strings.TrimSpace(plain.String())
		notes[noteID] = content
	}
	return notes
}
