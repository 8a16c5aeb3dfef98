// Package convert wires the conversion pipeline together: package bytes in,
// transformed package bytes out. Both entrypoints are pure and stateless
// across calls; every invocation owns its part tree, reference list,
// phrase-dedup state, and relationship caches.
package convert

import (
	"strings"

	"github.com/incipitworks/incipit/core/docpkg"
	"github.com/incipitworks/incipit/core/errors"
	"github.com/incipitworks/incipit/core/incipit"
	"github.com/incipitworks/incipit/core/links"
	"github.com/incipitworks/incipit/core/mutate"
	"github.com/incipitworks/incipit/core/ooxml"
	"github.com/incipitworks/incipit/core/scan"
	"github.com/incipitworks/incipit/internal/logging"
)

// Word-count bounds for the conversion option. The extractor accepts a wider
// internal range; this is the surface contract.
const (
	DefaultWordCount = 3
	MinWordCount     = 3
	MaxWordCount     = 8
)

// Emphasis style names accepted by Options.Style.
const (
	StyleBold   = "bold"
	StyleItalic = "italic"
)

// bookmarkPrefix namespaces generated bookmark names; combined with the note
// id it yields a globally unique name per document.
const bookmarkPrefix = "_IncipitRef"

// Options configures one conversion.
type Options struct {
	// WordCount controls fallback phrase length; clamped to
	// [MinWordCount, MaxWordCount], zero selects DefaultWordCount.
	WordCount int
	// Style selects bold or italic incipit emphasis; defaults to bold.
	Style string
}

func (o Options) wordCount() int {
	wc := o.WordCount
	if wc == 0 {
		wc = DefaultWordCount
	}
	if wc < MinWordCount {
		wc = MinWordCount
	}
	if wc > MaxWordCount {
		wc = MaxWordCount
	}
	return wc
}

func (o Options) style() mutate.Style {
	if strings.EqualFold(o.Style, StyleItalic) {
		return mutate.StyleItalic
	}
	return mutate.StyleBold
}

// Transform performs the endnote-to-incipit conversion on package bytes.
// Structural errors (missing body part, missing endnotes part, unparsable
// archive or XML) abort the whole operation: callers never receive a
// half-written package.
func Transform(data []byte, opts Options) ([]byte, error) {
	pkg, err := docpkg.Open(data)
	if err != nil {
		return nil, err
	}

	docBytes, ok := pkg.Part(docpkg.PartDocument)
	if !ok {
		return nil, errors.NewMissingPart(docpkg.PartDocument)
	}
	endnoteBytes, ok := pkg.Part(docpkg.PartEndnotes)
	if !ok {
		return nil, errors.NewMissingEndnotes()
	}

	doc, err := ooxml.Parse(docBytes)
	if err != nil {
		return nil, errors.NewMalformedPackage(docpkg.PartDocument, err)
	}
	endnotes, err := ooxml.Parse(endnoteBytes)
	if err != nil {
		return nil, errors.NewMalformedPackage(docpkg.PartEndnotes, err)
	}

	refs := scan.References(doc)
	extractor := incipit.NewExtractor(opts.wordCount())
	for _, ref := range refs {
		ref.Incipit = extractor.Extract(ref.TextBefore)
		ref.BookmarkName = bookmarkPrefix + ref.NoteID
	}

	notes := scan.Endnotes(endnotes)
	logging.Debug("conversion scan complete",
		"references", len(refs), "endnotes", len(notes))

	mutator := mutate.New(doc, endnotes, opts.style())
	mutator.Apply(refs, notes)

	pkg.SetPart(docpkg.PartDocument, ooxml.Serialize(doc))
	pkg.SetPart(docpkg.PartEndnotes, ooxml.Serialize(endnotes))
	return pkg.Bytes()
}

// ActivateLinks promotes bare URLs into relationship-backed hyperlinks. Safe
// to run on Transform output or on any valid package.
func ActivateLinks(data []byte) ([]byte, error) {
	return links.Activate(data)
}
