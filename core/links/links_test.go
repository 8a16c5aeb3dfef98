package links

import (
	"archive/zip"
	"bytes"
	"strings"
	"testing"

	"github.com/antchfx/xmlquery"

	"github.com/incipitworks/incipit/core/docpkg"
	"github.com/incipitworks/incipit/core/ooxml"
	"github.com/incipitworks/incipit/core/rels"
)

const wNS = `xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"`

func makePackage(t *testing.T, parts map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	order := []string{docpkg.PartDocument, docpkg.PartEndnotes, docpkg.PartFootnote,
		"word/_rels/document.xml.rels", "docProps/app.xml"}
	for _, name := range order {
		content, ok := parts[name]
		if !ok {
			continue
		}
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func parsePart(t *testing.T, pkg *docpkg.Package, name string) *xmlquery.Node {
	t.Helper()
	content, ok := pkg.Part(name)
	if !ok {
		t.Fatalf("part %s missing", name)
	}
	doc, err := ooxml.Parse(content)
	if err != nil {
		t.Fatalf("parse %s: %v", name, err)
	}
	return doc
}

func TestActivateWrapsBareURL(t *testing.T) {
	data := makePackage(t, map[string]string{
		docpkg.PartDocument: `<w:document ` + wNS + `><w:body>
<w:p><w:r><w:t xml:space="preserve">Visit https://example.com/page. Thanks.</w:t></w:r></w:p>
</w:body></w:document>`,
	})

	out, err := Activate(data)
	if err != nil {
		t.Fatalf("Activate() error: %v", err)
	}
	pkg, err := docpkg.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	doc := parsePart(t, pkg, docpkg.PartDocument)

	link := xmlquery.FindOne(doc, "//w:hyperlink")
	if link == nil {
		t.Fatal("no w:hyperlink element in output")
	}
	relID := link.SelectAttr("r:id")
	if relID == "" {
		t.Error("hyperlink has no r:id attribute")
	}
	if got := link.InnerText(); got != "https://example.com/page" {
		t.Errorf("hyperlink display text = %q, want the cleaned URL", got)
	}

	// Surrounding text survives as plain runs; stripped punctuation stays
	// outside the link.
	para := xmlquery.FindOne(doc, "//w:p")
	var plain []string
	for c := para.FirstChild; c != nil; c = c.NextSibling {
		if ooxml.IsElement(c, "w", "r") {
			plain = append(plain, ooxml.RunText(c))
		}
	}
	if got := strings.Join(plain, "|"); got != "Visit |. Thanks." {
		t.Errorf("plain segments = %q, want %q", got, "Visit |. Thanks.")
	}

	// The relationship table holds exactly one external hyperlink entry.
	relsBytes, ok := pkg.Part("word/_rels/document.xml.rels")
	if !ok {
		t.Fatal("relationship part not created")
	}
	table, err := rels.Parse(relsBytes)
	if err != nil {
		t.Fatal(err)
	}
	if table.Len() != 1 {
		t.Errorf("relationship entries = %d, want 1", table.Len())
	}
	if id, ok := table.HyperlinkID("https://example.com/page"); !ok || id != relID {
		t.Errorf("relationship id = %q, hyperlink r:id = %q", id, relID)
	}
}

func TestActivateDeduplicatesURLs(t *testing.T) {
	data := makePackage(t, map[string]string{
		docpkg.PartDocument: `<w:document ` + wNS + `><w:body>
<w:p><w:r><w:t>First https://example.com/x mention</w:t></w:r></w:p>
<w:p><w:r><w:t>Second https://example.com/x mention</w:t></w:r></w:p>
</w:body></w:document>`,
	})

	out, err := Activate(data)
	if err != nil {
		t.Fatal(err)
	}
	pkg, err := docpkg.Open(out)
	if err != nil {
		t.Fatal(err)
	}

	doc := parsePart(t, pkg, docpkg.PartDocument)
	hyperlinks := xmlquery.Find(doc, "//w:hyperlink")
	if len(hyperlinks) != 2 {
		t.Fatalf("hyperlinks = %d, want 2", len(hyperlinks))
	}
	if a, b := hyperlinks[0].SelectAttr("r:id"), hyperlinks[1].SelectAttr("r:id"); a != b {
		t.Errorf("same URL got two relationship ids: %q, %q", a, b)
	}

	relsBytes, _ := pkg.Part("word/_rels/document.xml.rels")
	table, err := rels.Parse(relsBytes)
	if err != nil {
		t.Fatal(err)
	}
	if table.Len() != 1 {
		t.Errorf("relationship entries = %d, want 1", table.Len())
	}
}

func TestActivateIdempotent(t *testing.T) {
	data := makePackage(t, map[string]string{
		docpkg.PartDocument: `<w:document ` + wNS + `><w:body>
<w:p><w:r><w:t>See https://example.com/doc here</w:t></w:r></w:p>
</w:body></w:document>`,
	})

	once, err := Activate(data)
	if err != nil {
		t.Fatal(err)
	}
	twice, err := Activate(once)
	if err != nil {
		t.Fatal(err)
	}

	first, err := docpkg.Open(once)
	if err != nil {
		t.Fatal(err)
	}
	second, err := docpkg.Open(twice)
	if err != nil {
		t.Fatal(err)
	}

	a, _ := first.Part(docpkg.PartDocument)
	b, _ := second.Part(docpkg.PartDocument)
	if !bytes.Equal(a, b) {
		t.Error("second activation rewrote the document part")
	}

	ra, _ := first.Part("word/_rels/document.xml.rels")
	rb, _ := second.Part("word/_rels/document.xml.rels")
	if !bytes.Equal(ra, rb) {
		t.Error("second activation rewrote the relationship table")
	}
}

func TestActivateLeavesLinklessPartsUntouched(t *testing.T) {
	docXML := `<w:document ` + wNS + `><w:body><w:p><w:r><w:t>No links here.</w:t></w:r></w:p></w:body></w:document>`
	data := makePackage(t, map[string]string{
		docpkg.PartDocument: docXML,
		"docProps/app.xml":  "<Properties/>",
	})

	out, err := Activate(data)
	if err != nil {
		t.Fatal(err)
	}
	pkg, err := docpkg.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	if got, _ := pkg.Part(docpkg.PartDocument); string(got) != docXML {
		t.Error("part without URLs was rewritten")
	}
	if pkg.HasPart("word/_rels/document.xml.rels") {
		t.Error("relationship table created for a part without links")
	}
}

func TestActivateSkipsFieldHyperlinks(t *testing.T) {
	data := makePackage(t, map[string]string{
		docpkg.PartDocument: `<w:document ` + wNS + `><w:body><w:p>
<w:r><w:fldChar w:fldCharType="begin"/></w:r>
<w:r><w:instrText xml:space="preserve"> HYPERLINK "https://example.com/field" </w:instrText></w:r>
<w:r><w:fldChar w:fldCharType="separate"/></w:r>
<w:r><w:t>https://example.com/field</w:t></w:r>
<w:r><w:fldChar w:fldCharType="end"/></w:r>
</w:p></w:body></w:document>`,
	})

	out, err := Activate(data)
	if err != nil {
		t.Fatal(err)
	}
	pkg, err := docpkg.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	content, _ := pkg.Part(docpkg.PartDocument)
	if strings.Contains(string(content), "<w:hyperlink") {
		t.Error("URL inside a HYPERLINK field was wrapped again")
	}
}

func TestActivateProcessesEndnotesAndFootnotes(t *testing.T) {
	data := makePackage(t, map[string]string{
		docpkg.PartDocument: `<w:document ` + wNS + `><w:body><w:p><w:r><w:t>Body.</w:t></w:r></w:p></w:body></w:document>`,
		docpkg.PartEndnotes: `<w:endnotes ` + wNS + `><w:endnote w:id="1"><w:p><w:r><w:t>See https://example.com/en</w:t></w:r></w:p></w:endnote></w:endnotes>`,
		docpkg.PartFootnote: `<w:footnotes ` + wNS + `><w:footnote w:id="1"><w:p><w:r><w:t>See https://example.com/fn</w:t></w:r></w:p></w:footnote></w:footnotes>`,
	})

	out, err := Activate(data)
	if err != nil {
		t.Fatal(err)
	}
	pkg, err := docpkg.Open(out)
	if err != nil {
		t.Fatal(err)
	}

	for _, part := range []string{docpkg.PartEndnotes, docpkg.PartFootnote} {
		doc := parsePart(t, pkg, part)
		if xmlquery.FindOne(doc, "//w:hyperlink") == nil {
			t.Errorf("no hyperlink created in %s", part)
		}
		if !pkg.HasPart(docpkg.RelsPart(part)) {
			t.Errorf("no relationship table created for %s", part)
		}
	}
}

func TestActivateMalformedArchive(t *testing.T) {
	if _, err := Activate([]byte("not a package")); err == nil {
		t.Error("Activate() accepted garbage bytes")
	}
}
