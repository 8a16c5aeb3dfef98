package ooxml

import (
	"strings"
	"testing"

	"github.com/antchfx/xmlquery"
)

const sampleDocument = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body><w:p><w:r><w:t>Hello</w:t><w:t xml:space="preserve"> world</w:t></w:r></w:p></w:body>
</w:document>`

func TestParseAndSerialize(t *testing.T) {
	doc, err := Parse([]byte(sampleDocument))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}

	out := Serialize(doc)
	if !strings.HasPrefix(string(out), "<?xml") {
		t.Errorf("Serialize() output missing XML declaration: %q", string(out)[:40])
	}

	reparsed, err := Parse(out)
	if err != nil {
		t.Fatalf("Parse(Serialize()) error: %v", err)
	}
	texts := xmlquery.Find(reparsed, "//w:t")
	if len(texts) != 2 {
		t.Fatalf("round trip lost text nodes: got %d, want 2", len(texts))
	}
	if got := texts[0].InnerText() + texts[1].InnerText(); got != "Hello world" {
		t.Errorf("round trip text = %q, want %q", got, "Hello world")
	}
}

func TestParseInvalid(t *testing.T) {
	if _, err := Parse([]byte("<w:document><unclosed")); err == nil {
		t.Error("Parse() accepted unclosed XML")
	}
}

func TestElementAndText(t *testing.T) {
	el := Element("p")
	if el.Prefix != "w" || el.Data != "p" || el.NamespaceURI != NSMain {
		t.Errorf("Element() = prefix=%q data=%q ns=%q", el.Prefix, el.Data, el.NamespaceURI)
	}

	txt := Text("hello")
	if txt.Type != xmlquery.TextNode || txt.Data != "hello" {
		t.Errorf("Text() = type=%v data=%q", txt.Type, txt.Data)
	}
}

func TestSetAttr(t *testing.T) {
	el := Element("bookmarkStart")
	SetAttr(el, "w", "id", "1000")
	SetAttr(el, "", "plain", "v")

	if len(el.Attr) != 2 {
		t.Fatalf("got %d attrs, want 2", len(el.Attr))
	}
	if el.Attr[0].Name.Space != "w" || el.Attr[0].Name.Local != "id" || el.Attr[0].Value != "1000" {
		t.Errorf("prefixed attr = %+v", el.Attr[0])
	}
	if el.Attr[0].NamespaceURI != NSMain {
		t.Errorf("prefixed attr namespace = %q, want %q", el.Attr[0].NamespaceURI, NSMain)
	}
	if el.Attr[1].Name.Space != "" || el.Attr[1].NamespaceURI != "" {
		t.Errorf("unprefixed attr = %+v", el.Attr[1])
	}
}

func TestInsertBeforeAndAfter(t *testing.T) {
	parent := Element("p")
	mid := Element("r")
	AddChild(parent, mid)

	first := Element("bookmarkStart")
	InsertBefore(mid, first)
	last := Element("bookmarkEnd")
	InsertAfter(mid, last)

	if parent.FirstChild != first {
		t.Error("InsertBefore did not update FirstChild")
	}
	if parent.LastChild != last {
		t.Error("InsertAfter did not update LastChild")
	}

	var order []string
	for c := parent.FirstChild; c != nil; c = c.NextSibling {
		order = append(order, c.Data)
	}
	want := "bookmarkStart r bookmarkEnd"
	if got := strings.Join(order, " "); got != want {
		t.Errorf("sibling order = %q, want %q", got, want)
	}

	// Backward links must mirror forward links.
	var back []string
	for c := parent.LastChild; c != nil; c = c.PrevSibling {
		back = append(back, c.Data)
	}
	if got := strings.Join(back, " "); got != "bookmarkEnd r bookmarkStart" {
		t.Errorf("reverse order = %q", got)
	}
}

func TestInsertBeforeMiddle(t *testing.T) {
	parent := Element("p")
	a := Element("r")
	b := Element("r")
	AddChild(parent, a)
	AddChild(parent, b)

	x := Element("hyperlink")
	InsertBefore(b, x)

	if a.NextSibling != x || x.PrevSibling != a || x.NextSibling != b || b.PrevSibling != x {
		t.Error("InsertBefore broke sibling links in the middle of a list")
	}
	if parent.FirstChild != a || parent.LastChild != b {
		t.Error("InsertBefore in the middle changed parent endpoints")
	}
}

func TestRemove(t *testing.T) {
	parent := Element("p")
	a := Element("r")
	b := Element("r")
	c := Element("r")
	AddChild(parent, a)
	AddChild(parent, b)
	AddChild(parent, c)

	Remove(b)
	if a.NextSibling != c || c.PrevSibling != a {
		t.Error("Remove did not relink siblings")
	}
	if b.Parent != nil || b.PrevSibling != nil || b.NextSibling != nil {
		t.Error("Remove left stale links on the detached node")
	}

	Remove(a)
	Remove(c)
	if parent.FirstChild != nil || parent.LastChild != nil {
		t.Error("Remove of all children left stale endpoints")
	}
}

func TestCloneIndependence(t *testing.T) {
	run := Element("r")
	props := Element("rPr")
	AddChild(props, Element("i"))
	AddChild(run, props)
	tEl := Element("t")
	SetAttr(tEl, "xml", "space", "preserve")
	AddChild(tEl, Text("original"))
	AddChild(run, tEl)

	clone := Clone(run)
	if clone == run || clone.FirstChild == run.FirstChild {
		t.Fatal("Clone aliases the original tree")
	}
	if RunText(clone) != "original" {
		t.Errorf("clone text = %q", RunText(clone))
	}

	// Mutating the clone must not touch the original.
	clone.LastChild.FirstChild.Data = "changed"
	SetAttr(clone, "w", "extra", "1")
	if RunText(run) != "original" {
		t.Error("mutating the clone changed the original text")
	}
	if len(run.Attr) != 0 {
		t.Error("mutating the clone changed the original attrs")
	}
}

func TestRunText(t *testing.T) {
	run := Element("r")
	AddChild(run, Element("rPr"))
	t1 := Element("t")
	AddChild(t1, Text("foo"))
	t2 := Element("t")
	AddChild(t2, Text(" bar"))
	AddChild(run, t1)
	AddChild(run, t2)

	if got := RunText(run); got != "foo bar" {
		t.Errorf("RunText() = %q, want %q", got, "foo bar")
	}
}

func TestIsElement(t *testing.T) {
	el := Element("r")
	if !IsElement(el, "w", "r") {
		t.Error("IsElement() = false for matching element")
	}
	if IsElement(el, "w", "p") || IsElement(el, "r", "r") || IsElement(nil, "w", "r") {
		t.Error("IsElement() matched a non-matching node")
	}
	if IsElement(Text("x"), "w", "r") {
		t.Error("IsElement() matched a text node")
	}
}

func TestEnsureRelationshipNamespace(t *testing.T) {
	doc, err := Parse([]byte(sampleDocument))
	if err != nil {
		t.Fatal(err)
	}

	EnsureRelationshipNamespace(doc)
	out := string(Serialize(doc))
	if !strings.Contains(out, `xmlns:r="`+NSRelationships+`"`) {
		t.Error("EnsureRelationshipNamespace did not declare xmlns:r")
	}

	// A second call must not duplicate the declaration.
	doc2, err := Parse([]byte(out))
	if err != nil {
		t.Fatal(err)
	}
	EnsureRelationshipNamespace(doc2)
	out2 := string(Serialize(doc2))
	if strings.Count(out2, "xmlns:r=") != 1 {
		t.Errorf("xmlns:r declared %d times, want 1", strings.Count(out2, "xmlns:r="))
	}
}
