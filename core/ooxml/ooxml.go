// Package ooxml provides parsing, serialization, and tree-surgery helpers for
// WordprocessingML parts. It builds on xmlquery's pointer-linked node model:
// every node tracks its parent and siblings, so insertions and removals never
// need positional indices or whole-tree ancestor scans.
//
// Ownership rule: nodes moved from a parsed input tree into a newly built
// output tree must be structural clones (see Clone). The input tree is never
// mutated after extraction, and no output node may alias an input node.
package ooxml

import (
	"bytes"
	"encoding/xml"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"

	"github.com/incipitworks/incipit/core/errors"
)

// Well-known WordprocessingML namespace URIs.
const (
	NSMain          = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
	NSRelationships = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"
	NSXML           = "http://www.w3.org/XML/1998/namespace"
)

// Namespaces is the immutable prefix table for elements and attributes this
// package constructs. Prefixes beyond these ride through from the source
// document untouched; the table is read-only and safe to share process-wide.
var Namespaces = map[string]string{
	"w":   NSMain,
	"r":   NSRelationships,
	"xml": NSXML,
	"mc":  "http://schemas.openxmlformats.org/markup-compatibility/2006",
	"wp":  "http://schemas.openxmlformats.org/drawingml/2006/wordprocessingDrawing",
	"w14": "http://schemas.microsoft.com/office/word/2010/wordml",
	"w15": "http://schemas.microsoft.com/office/word/2012/wordml",
}

var exprText = xpath.MustCompile(".//w:t")

// Parse parses an XML part into an xmlquery document tree.
// Prefixes and namespace declarations survive a parse/serialize round trip.
func Parse(data []byte) (*xmlquery.Node, error) {
	doc, err := xmlquery.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, "parsing XML")
	}
	return doc, nil
}

// Serialize converts a parsed document tree back to part bytes. If the source
// carried no XML declaration one is prepended, since the host application
// expects every part to open with one.
func Serialize(doc *xmlquery.Node) []byte {
	out := doc.OutputXML(true)
	if !strings.HasPrefix(out, "<?xml") {
		out = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\r\n" + out
	}
	return []byte(out)
}

// Element creates a new element in the main WordprocessingML namespace.
func Element(local string) *xmlquery.Node {
	return &xmlquery.Node{
		Type:         xmlquery.ElementNode,
		Data:         local,
		Prefix:       "w",
		NamespaceURI: NSMain,
	}
}

// Text creates a new text node.
func Text(s string) *xmlquery.Node {
	return &xmlquery.Node{Type: xmlquery.TextNode, Data: s}
}

// SetAttr appends a prefixed attribute to an element. An empty prefix yields
// an unprefixed attribute.
func SetAttr(n *xmlquery.Node, prefix, local, value string) {
	attr := xmlquery.Attr{
		Name:  xml.Name{Space: prefix, Local: local},
		Value: value,
	}
	if uri, ok := Namespaces[prefix]; ok {
		attr.NamespaceURI = uri
	}
	n.Attr = append(n.Attr, attr)
}

// AddChild appends a child node, fixing up parent and sibling links.
func AddChild(parent, n *xmlquery.Node) {
	xmlquery.AddChild(parent, n)
}

// InsertBefore inserts n as the immediate preceding sibling of ref.
func InsertBefore(ref, n *xmlquery.Node) {
	n.Parent = ref.Parent
	n.PrevSibling = ref.PrevSibling
	n.NextSibling = ref
	if ref.PrevSibling != nil {
		ref.PrevSibling.NextSibling = n
	} else if ref.Parent != nil {
		ref.Parent.FirstChild = n
	}
	ref.PrevSibling = n
}

// InsertAfter inserts n as the immediate following sibling of ref.
func InsertAfter(ref, n *xmlquery.Node) {
	n.Parent = ref.Parent
	n.NextSibling = ref.NextSibling
	n.PrevSibling = ref
	if ref.NextSibling != nil {
		ref.NextSibling.PrevSibling = n
	} else if ref.Parent != nil {
		ref.Parent.LastChild = n
	}
	ref.NextSibling = n
}

// Remove detaches a node from its tree. The node's own child links are kept
// so detached subtrees remain usable.
func Remove(n *xmlquery.Node) {
	if n.Parent == nil {
		return
	}
	if n.Parent.FirstChild == n {
		n.Parent.FirstChild = n.NextSibling
	}
	if n.Parent.LastChild == n {
		n.Parent.LastChild = n.PrevSibling
	}
	if n.PrevSibling != nil {
		n.PrevSibling.NextSibling = n.NextSibling
	}
	if n.NextSibling != nil {
		n.NextSibling.PrevSibling = n.PrevSibling
	}
	n.Parent = nil
	n.PrevSibling = nil
	n.NextSibling = nil
}

// Clone returns a deep structural copy of a node. The copy shares nothing
// with the original, so mutating either tree cannot corrupt the other.
func Clone(n *xmlquery.Node) *xmlquery.Node {
	c := &xmlquery.Node{
		Type:         n.Type,
		Data:         n.Data,
		Prefix:       n.Prefix,
		NamespaceURI: n.NamespaceURI,
	}
	if len(n.Attr) > 0 {
		c.Attr = make([]xmlquery.Attr, len(n.Attr))
		copy(c.Attr, n.Attr)
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		xmlquery.AddChild(c, Clone(child))
	}
	return c
}

// RunText returns the concatenated text content of a run's w:t descendants.
func RunText(run *xmlquery.Node) string {
	var sb strings.Builder
	for _, t := range xmlquery.QuerySelectorAll(run, exprText) {
		sb.WriteString(t.InnerText())
	}
	return sb.String()
}

// IsElement reports whether n is an element with the given prefix and local name.
func IsElement(n *xmlquery.Node, prefix, local string) bool {
	return n != nil && n.Type == xmlquery.ElementNode && n.Prefix == prefix && n.Data == local
}

// EnsureRelationshipNamespace declares the officeDocument relationships
// namespace on the part's root element if it is not already bound. Parts that
// gain r:id attributes need the declaration to stay well-formed.
func EnsureRelationshipNamespace(doc *xmlquery.Node) {
	root := rootElement(doc)
	if root == nil {
		return
	}
	for _, attr := range root.Attr {
		if attr.Name.Space == "xmlns" && attr.Name.Local == "r" {
			return
		}
	}
	root.Attr = append(root.Attr, xmlquery.Attr{
		Name:  xml.Name{Space: "xmlns", Local: "r"},
		Value: NSRelationships,
	})
}

func rootElement(doc *xmlquery.Node) *xmlquery.Node {
	for child := doc.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == xmlquery.ElementNode {
			return child
		}
	}
	return nil
}
