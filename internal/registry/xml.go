package registry

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/coral-mesh/apitrace/internal/errors"
	"github.com/coral-mesh/apitrace/internal/safe"
)

type xmlRegistry struct {
	Types      []xmlType    `xml:"types>type"`
	Enums      []xmlEnums   `xml:"enums"`
	Commands   []xmlCommand `xml:"commands>command"`
	Features   []xmlFeature `xml:"feature"`
	Extensions []xmlFeature `xml:"extensions>extension"`
}

type xmlCommand struct {
	Proto  Decl   `xml:"proto"`
	Params []Decl `xml:"param"`
}

type xmlEnums struct {
	Values []xmlEnum `xml:"enum"`
}

type xmlEnum struct {
	Name   string `xml:"name,attr"`
	Value  string `xml:"value,attr"`
	Bitpos string `xml:"bitpos,attr"`
}

type xmlFeature struct {
	Requires []xmlRequire `xml:"require"`
}

type xmlRequire struct {
	Comment string    `xml:"comment,attr"`
	Enums   []xmlEnum `xml:"enum"`
}

// xmlType covers both typedef definitions, which are mixed content, and
// structs, which carry <member> children.
type xmlType struct {
	Category string
	Name     string
	Decl     Decl
	Members  []Decl
}

func (t *xmlType) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	for _, a := range start.Attr {
		switch a.Name.Local {
		case "category":
			t.Category = a.Value
		case "name":
			t.Name = a.Value
		}
	}
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch el := tok.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case "member":
				var m Decl
				if err := d.DecodeElement(&m, &el); err != nil {
					return err
				}
				t.Members = append(t.Members, m)
			case "comment":
				if err := d.Skip(); err != nil {
					return err
				}
			default:
				text, err := innerText(d)
				if err != nil {
					return err
				}
				t.Decl.Tokens = append(t.Decl.Tokens, Token{Element: el.Name.Local, Text: text})
			}
		case xml.CharData:
			t.Decl.Tokens = append(t.Decl.Tokens, Token{Text: string(el)})
		case xml.EndElement:
			return nil
		}
	}
}

// UnmarshalXML keeps the mixed content of a declaration node in order.
func (decl *Decl) UnmarshalXML(d *xml.Decoder, _ xml.StartElement) error {
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch el := tok.(type) {
		case xml.StartElement:
			if el.Name.Local == "comment" {
				if err := d.Skip(); err != nil {
					return err
				}
				continue
			}
			text, err := innerText(d)
			if err != nil {
				return err
			}
			decl.Tokens = append(decl.Tokens, Token{Element: el.Name.Local, Text: text})
		case xml.CharData:
			decl.Tokens = append(decl.Tokens, Token{Text: string(el)})
		case xml.EndElement:
			return nil
		}
	}
}

// innerText consumes the rest of the current element and returns its text.
func innerText(d *xml.Decoder) (string, error) {
	var b strings.Builder
	for depth := 1; depth > 0; {
		tok, err := d.Token()
		if err != nil {
			return "", err
		}
		switch el := tok.(type) {
		case xml.StartElement:
			depth++
		case xml.EndElement:
			depth--
		case xml.CharData:
			b.Write(el)
		}
	}
	return b.String(), nil
}

// ParseXML reads a registry document.
func ParseXML(r io.Reader) (*Registry, error) {
	var doc xmlRegistry
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, errors.Load("decode registry", err)
	}

	reg := &Registry{Constants: make(map[string]string)}

	for _, t := range doc.Types {
		switch t.Category {
		case "define":
			if typ := t.Decl.TypeText(); typ != "" {
				reg.Typedefs = append(reg.Typedefs, Typedef{Name: t.Decl.Name(), Type: typ})
			}
		case "struct":
			reg.Structs = append(reg.Structs, Struct{Name: t.Name, Members: t.Members})
		}
	}

	for _, group := range doc.Enums {
		for _, e := range group.Values {
			switch {
			case e.Value != "":
				reg.Constants[e.Name] = e.Value
			case e.Bitpos != "":
				reg.Constants[e.Name] = fmt.Sprintf("(1 << %s)", e.Bitpos)
			}
		}
	}

	for _, c := range doc.Commands {
		reg.Commands = append(reg.Commands, Command(c))
	}

	for _, f := range append(doc.Features, doc.Extensions...) {
		for _, req := range f.Requires {
			if len(req.Enums) == 0 {
				continue
			}
			r := Require{Comment: req.Comment}
			for _, e := range req.Enums {
				r.Enums = append(r.Enums, e.Name)
			}
			reg.Requires = append(reg.Requires, r)
		}
	}

	return reg, nil
}

// MaxRegistrySize bounds the registry documents LoadFile accepts.
const MaxRegistrySize = 64 << 20

// LoadFile reads a registry document from path.
func LoadFile(path string) (*Registry, error) {
	data, err := safe.ReadFile(path, &safe.ReadOptions{MaxSize: MaxRegistrySize, AllowSymlinks: true})
	if err != nil {
		return nil, errors.Load(fmt.Sprintf("open registry %s", path), err)
	}
	return ParseXML(bytes.NewReader(data))
}
