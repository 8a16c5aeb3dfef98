// Package docpkg materializes a Word document package (a zip archive) into a
// set of named parts and serializes them back. Everything stays in memory:
// each conversion owns its own part tree, and there is no scratch storage to
// leak across invocations or exit paths.
package docpkg

import (
	"archive/zip"
	"bytes"
	"io"
	"path"
	"strings"

	"github.com/incipitworks/incipit/core/errors"
)

// Canonical part names this module operates on.
const (
	PartDocument = "word/document.xml"
	PartEndnotes = "word/endnotes.xml"
	PartFootnote = "word/footnotes.xml"
)

// Package is a part-addressable view of one document archive.
type Package struct {
	parts map[string][]byte
	order []string
}

// Open reads package bytes into a part map, preserving archive entry order.
// Returns a MalformedPackageError when the archive cannot be read.
func Open(data []byte) (*Package, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, errors.NewMalformedPackage("archive", err)
	}

	p := &Package{parts: make(map[string][]byte)}
	for _, f := range zr.File {
		if strings.HasSuffix(f.Name, "/") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, errors.NewMalformedPackage(f.Name, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, errors.NewMalformedPackage(f.Name, err)
		}
		if _, seen := p.parts[f.Name]; !seen {
			p.order = append(p.order, f.Name)
		}
		p.parts[f.Name] = content
	}
	return p, nil
}

// Part returns the content of a named part.
func (p *Package) Part(name string) ([]byte, bool) {
	content, ok := p.parts[name]
	return content, ok
}

// HasPart reports whether the package contains the named part.
func (p *Package) HasPart(name string) bool {
	_, ok := p.parts[name]
	return ok
}

// SetPart replaces a part's content, or adds a new part at the end of the
// archive when the name is not present.
func (p *Package) SetPart(name string, content []byte) {
	if _, seen := p.parts[name]; !seen {
		p.order = append(p.order, name)
	}
	p.parts[name] = content
}

// Names returns part names in archive order.
func (p *Package) Names() []string {
	names := make([]string, len(p.order))
	copy(names, p.order)
	return names
}

// Bytes repacks the part tree into archive bytes. Parts that were never
// replaced are written back with their original content, byte for byte.
func (p *Package) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range p.order {
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:   name,
			Method: zip.Deflate,
		})
		if err != nil {
			zw.Close()
			return nil, errors.Wrapf(err, "packing %s", name)
		}
		if _, err := w.Write(p.parts[name]); err != nil {
			zw.Close()
			return nil, errors.Wrapf(err, "packing %s", name)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, errors.Wrap(err, "closing package")
	}
	return buf.Bytes(), nil
}

// RelsPart returns the relationship part name for a given part, e.g.
// "word/document.xml" -> "word/_rels/document.xml.rels".
func RelsPart(part string) string {
	dir, base := path.Split(part)
	return dir + "_rels/" + base + ".rels"
}
