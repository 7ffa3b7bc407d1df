package ojp

import (
	"encoding/xml"
	"errors"
	"io"
	"strings"

	"github.com/beevik/etree"
)

// Normalize strips namespace declarations and tag prefixes so that element
// lookups do not depend on which prefixes a server chose. Text, attribute
// values, comments and CDATA sections are kept. Input that is not a single
// well-formed XML document is rejected with a *ParseError.
func Normalize(raw string) (string, error) {
	doc := etree.NewDocument()
	doc.ReadSettings.PreserveCData = true
	if err := doc.ReadFromString(raw); err != nil {
		return "", NewParseError("response is not well-formed", err)
	}
	if err := checkTopLevel(doc); err != nil {
		return "", err
	}
	if err := checkAttrSpacing(raw); err != nil {
		return "", err
	}
	if err := stripNamespaces(doc.Root()); err != nil {
		return "", err
	}

	doc.WriteSettings.CanonicalText = true
	doc.WriteSettings.CanonicalAttrVal = true
	out, err := doc.WriteToString()
	if err != nil {
		return "", NewParseError("writing normalized response", err)
	}
	return out, nil
}

// checkTopLevel requires exactly one root element and no text outside it.
func checkTopLevel(doc *etree.Document) error {
	roots := 0
	for _, tok := range doc.Child {
		switch t := tok.(type) {
		case *etree.Element:
			roots++
		case *etree.CharData:
			if strings.TrimSpace(t.Data) != "" {
				return NewParseError("text outside the root element", nil)
			}
		}
	}
	switch {
	case roots == 0:
		return NewParseError("document has no root element", nil)
	case roots > 1:
		return NewParseError("document has more than one root element", nil)
	}
	return nil
}

// checkAttrSpacing rejects start tags whose attributes are not separated by
// whitespace. encoding/xml, and so etree, accepts them.
func checkAttrSpacing(raw string) error {
	dec := xml.NewDecoder(strings.NewReader(raw))
	dec.CharsetReader = func(_ string, r io.Reader) (io.Reader, error) { return r, nil }

	prev := dec.InputOffset()
	for {
		tok, err := dec.RawToken()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return NewParseError("response is not well-formed", err)
		}
		end := dec.InputOffset()
		if se, ok := tok.(xml.StartElement); ok && !attrsSpaced(raw[prev:end]) {
			return NewParseError("attributes of "+se.Name.Local+" are not separated by whitespace", nil)
		}
		prev = end
	}
}

func attrsSpaced(tag string) bool {
	var quote byte
	for i := 0; i < len(tag); i++ {
		c := tag[i]
		switch {
		case quote != 0:
			if c != quote {
				continue
			}
			quote = 0
			if i+1 < len(tag) && !strings.ContainsRune(" \t\r\n/>", rune(tag[i+1])) {
				return false
			}
		case c == '"' || c == '\'':
			quote = c
		}
	}
	return true
}

// stripNamespaces drops prefixes and namespace declarations below e. When two
// attributes share a local name the first one wins.
func stripNamespaces(e *etree.Element) error {
	if strings.Contains(e.Tag, ":") {
		return NewParseError("element name "+e.FullTag()+" has more than one prefix", nil)
	}
	e.Space = ""

	attrs := e.Attr[:0]
	seen := make(map[string]bool, len(e.Attr))
	for _, a := range e.Attr {
		if a.Space == "xmlns" || (a.Space == "" && a.Key == "xmlns") {
			continue
		}
		if strings.Contains(a.Key, ":") {
			return NewParseError("attribute name "+a.FullKey()+" has more than one prefix", nil)
		}
		if seen[a.Key] {
			continue
		}
		seen[a.Key] = true
		a.Space = ""
		attrs = append(attrs, a)
	}
	e.Attr = attrs

	for _, child := range e.ChildElements() {
		if err := stripNamespaces(child); err != nil {
			return err
		}
	}
	return nil
}
