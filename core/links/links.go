// Package links promotes bare URL text into native hyperlink elements backed
// by relationship entries. It operates on any valid package, independently of
// the incipit conversion, and is idempotent: a second pass creates no new
// relationships and wraps no additional runs.
//
// All rewriting goes through the parsed tree. Splicing raw markup as text
// risks producing documents the host application refuses to open.
package links

import (
	"regexp"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"

	"github.com/incipitworks/incipit/core/docpkg"
	"github.com/incipitworks/incipit/core/errors"
	"github.com/incipitworks/incipit/core/ooxml"
	"github.com/incipitworks/incipit/core/rels"
	"github.com/incipitworks/incipit/internal/logging"
)

// urlPattern matches http/https URLs terminated by whitespace, angle
// brackets, or a double quote.
var urlPattern = regexp.MustCompile(`https?://[^\s<>"]+`)

// trailingPunct holds characters stripped from a matched URL's tail; they
// stay in the document as plain text outside the link.
const trailingPunct = `.,;:)]'"`

// linkColor is the fixed display style applied to hyperlink runs.
const linkColor = "0000FF"

var (
	exprParagraphs = xpath.MustCompile(".//w:p")
	exprFldChar    = xpath.MustCompile(".//w:fldChar")
	exprInstrText  = xpath.MustCompile(".//w:instrText")
)

// targetParts are the XML parts scanned for URLs, each with its own
// relationship table.
var targetParts = []string{docpkg.PartDocument, docpkg.PartEndnotes, docpkg.PartFootnote}

// Activate rewrites bare URLs in the package's body, endnote, and footnote
// parts into relationship-backed hyperlinks. Parts without URL matches are
// left untouched, byte for byte.
func Activate(data []byte) ([]byte, error) {
	pkg, err := docpkg.Open(data)
	if err != nil {
		return nil, err
	}

	for _, part := range targetParts {
		content, ok := pkg.Part(part)
		if !ok {
			continue
		}
		if err := activatePart(pkg, part, content); err != nil {
			return nil, err
		}
	}
	return pkg.Bytes()
}

// activatePart processes one XML part and, when links were added, persists
// both the rewritten part and its relationship table.
func activatePart(pkg *docpkg.Package, part string, content []byte) error {
	doc, err := ooxml.Parse(content)
	if err != nil {
		return errors.NewMalformedPackage(part, err)
	}

	relsName := docpkg.RelsPart(part)
	table := loadRelationships(pkg, relsName)

	wrapped := 0
	for _, para := range xmlquery.QuerySelectorAll(doc, exprParagraphs) {
		wrapped += activateParagraph(para, table)
	}
	if wrapped == 0 {
		return nil
	}

	ooxml.EnsureRelationshipNamespace(doc)
	pkg.SetPart(part, ooxml.Serialize(doc))
	if table.Dirty() {
		serialized, err := table.Marshal()
		if err != nil {
			return err
		}
		pkg.SetPart(relsName, serialized)
	}
	logging.Debug("links activated", "part", part, "runs_wrapped", wrapped, "relationships", table.Len())
	return nil
}

// activateParagraph walks a paragraph's direct-child runs. Runs nested inside
// hyperlink elements are not direct children and are skipped implicitly;
// runs belonging to a field-based HYPERLINK (fldChar/instrText) are tracked
// and skipped explicitly.
func activateParagraph(para *xmlquery.Node, table *rels.Table) int {
	wrapped := 0
	inField := false
	fieldIsHyperlink := false

	child := para.FirstChild
	for child != nil {
		next := child.NextSibling
		if !ooxml.IsElement(child, "w", "r") {
			child = next
			continue
		}

		if fc := xmlquery.QuerySelector(child, exprFldChar); fc != nil {
			switch fc.SelectAttr("w:fldCharType") {
			case "begin":
				inField = true
				fieldIsHyperlink = false
			case "end":
				inField = false
				fieldIsHyperlink = false
			}
			child = next
			continue
		}
		if inField {
			if it := xmlquery.QuerySelector(child, exprInstrText); it != nil &&
				strings.Contains(it.InnerText(), "HYPERLINK") {
				fieldIsHyperlink = true
			}
			if fieldIsHyperlink {
				child = next
				continue
			}
		}

		text := ooxml.RunText(child)
		matches := urlPattern.FindAllStringIndex(text, -1)
		if len(matches) > 0 {
			splitRun(child, text, matches, table)
			wrapped++
		}
		child = next
	}
	return wrapped
}

// splitRun replaces one run holding URL text with a chain of segments:
// plain-text runs keeping the original formatting, and hyperlink elements for
// each cleaned URL. Trailing punctuation stripped from a URL carries into the
// following plain segment.
func splitRun(run *xmlquery.Node, text string, matches [][]int, table *rels.Table) {
	props := directChild(run, "rPr")

	var segments []*xmlquery.Node
	cursor := 0
	pending := ""
	for _, m := range matches {
		lead := pending + text[cursor:m[0]]
		pending = ""
		if lead != "" {
			segments = append(segments, plainRun(props, lead))
		}

		url := text[m[0]:m[1]]
		clean := strings.TrimRight(url, trailingPunct)
		pending = url[len(clean):]
		segments = append(segments, hyperlinkElement(table.AddHyperlink(clean), props, clean))
		cursor = m[1]
	}
	if tail := pending + text[cursor:]; tail != "" {
		segments = append(segments, plainRun(props, tail))
	}

	for _, segment := range segments {
		ooxml.InsertBefore(run, segment)
	}
	ooxml.Remove(run)
}

// plainRun builds a text run inheriting the original run properties.
func plainRun(props *xmlquery.Node, text string) *xmlquery.Node {
	run := ooxml.Element("r")
	if props != nil {
		ooxml.AddChild(run, ooxml.Clone(props))
	}
	t := ooxml.Element("t")
	ooxml.SetAttr(t, "xml", "space", "preserve")
	ooxml.AddChild(t, ooxml.Text(text))
	ooxml.AddChild(run, t)
	return run
}

// hyperlinkElement builds a w:hyperlink referencing a relationship id. The
// inner run inherits the original properties except color and underline,
// which are overridden to the fixed link style.
func hyperlinkElement(relID string, props *xmlquery.Node, display string) *xmlquery.Node {
	link := ooxml.Element("hyperlink")
	ooxml.SetAttr(link, "r", "id", relID)
	ooxml.SetAttr(link, "w", "history", "1")

	run := ooxml.Element("r")
	ooxml.AddChild(run, linkRunProperties(props))
	t := ooxml.Element("t")
	ooxml.AddChild(t, ooxml.Text(display))
	ooxml.AddChild(run, t)
	ooxml.AddChild(link, run)
	return link
}

// linkRunProperties clones the original run properties, dropping any color or
// underline so the link style wins.
func linkRunProperties(props *xmlquery.Node) *xmlquery.Node {
	var pr *xmlquery.Node
	if props != nil {
		pr = ooxml.Clone(props)
		child := pr.FirstChild
		for child != nil {
			next := child.NextSibling
			if ooxml.IsElement(child, "w", "color") || ooxml.IsElement(child, "w", "u") {
				ooxml.Remove(child)
			}
			child = next
		}
	} else {
		pr = ooxml.Element("rPr")
	}

	color := ooxml.Element("color")
	ooxml.SetAttr(color, "w", "val", linkColor)
	ooxml.AddChild(pr, color)

	underline := ooxml.Element("u")
	ooxml.SetAttr(underline, "w", "val", "single")
	ooxml.AddChild(pr, underline)
	return pr
}

// loadRelationships loads a part's persisted relationship table. A corrupt
// table degrades to an empty one: only URL deduplication is lost, never the
// conversion.
func loadRelationships(pkg *docpkg.Package, relsName string) *rels.Table {
	content, ok := pkg.Part(relsName)
	if !ok {
		return rels.New()
	}
	table, err := rels.Parse(content)
	if err != nil {
		logging.Warn("relationship table unreadable, continuing with empty table",
			"part", relsName, "error", err.Error())
		return rels.New()
	}
	return table
}

func directChild(parent *xmlquery.Node, local string) *xmlquery.Node {
	for child := parent.FirstChild; child != nil; child = child.NextSibling {
		if ooxml.IsElement(child, "w", local) {
			return child
		}
	}
	return nil
}
