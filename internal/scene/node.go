package scene

import (
	"encoding/xml"
	"errors"
	"io"
	"strings"
)

// Attr is an element attribute.
type Attr struct {
	Name  string
	Value string
}

// Node is a generic XML element with its attributes, child elements and text.
type Node struct {
	Name     string
	Attrs    []Attr
	Children []*Node
	Text     string
}

// NewNode returns an element with the given attributes.
func NewNode(name string, attrs ...Attr) *Node {
	return &Node{Name: name, Attrs: attrs}
}

// Attr returns the named attribute.
func (n *Node) Attr(name string) (string, bool) {
	for _, a := range n.Attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// SetAttr replaces or appends the named attribute.
func (n *Node) SetAttr(name, value string) {
	for i := range n.Attrs {
		if n.Attrs[i].Name == name {
			n.Attrs[i].Value = value
			return
		}
	}
	n.Attrs = append(n.Attrs, Attr{Name: name, Value: value})
}

// Append adds child elements and returns n.
func (n *Node) Append(children ...*Node) *Node {
	n.Children = append(n.Children, children...)
	return n
}

// Child returns the first direct child with the given name.
func (n *Node) Child(name string) *Node {
	for _, c := range n.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Descendants returns every element below n with the given name in document order.
func (n *Node) Descendants(name string) []*Node {
	var out []*Node
	var walk func(*Node)
	walk = func(cur *Node) {
		for _, c := range cur.Children {
			if c.Name == name {
				out = append(out, c)
			}
			walk(c)
		}
	}
	walk(n)
	return out
}

// Property returns the text of the <property name="..."> child.
func (n *Node) Property(name string) (string, bool) {
	for _, c := range n.Children {
		if c.Name == "property" {
			if v, _ := c.Attr("name"); v == name {
				return c.Text, true
			}
		}
	}
	return "", false
}

// SetProperty replaces or appends a <property> child.
func (n *Node) SetProperty(name, value string) {
	for _, c := range n.Children {
		if c.Name == "property" {
			if v, _ := c.Attr("name"); v == name {
				c.Text = value
				return
			}
		}
	}
	n.Children = append(n.Children, &Node{Name: "property", Attrs: []Attr{{Name: "name", Value: name}}, Text: value})
}

// RemoveProperty drops the <property> child and reports whether it existed.
func (n *Node) RemoveProperty(name string) bool {
	for i, c := range n.Children {
		if c.Name == "property" {
			if v, _ := c.Attr("name"); v == name {
				n.Children = append(n.Children[:i], n.Children[i+1:]...)
				return true
			}
		}
	}
	return false
}

// DecodeTree parses scene text into a Node tree. In lenient mode the decoder
// accepts HTML-style entities and unclosed elements, and a truncated document
// keeps whatever was read before the damage.
func DecodeTree(text string, lenient bool) (*Node, []Warning, error) {
	dec := xml.NewDecoder(strings.NewReader(text))
	if lenient {
		dec.Strict = false
		dec.AutoClose = xml.HTMLAutoClose
		dec.Entity = xml.HTMLEntity
	}

	var (
		root     *Node
		stack    []*Node
		warnings []Warning
		texts    []*strings.Builder
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			line, _ := dec.InputPos()
			var syntax *xml.SyntaxError
			if errors.As(err, &syntax) {
				line = syntax.Line
			}
			if lenient && root != nil {
				warnings = append(warnings, Warning{Line: line, Message: "scene text damaged, keeping content read so far: " + err.Error()})
				break
			}
			return nil, nil, &ParseError{Line: line, Msg: "malformed scene text", Err: err}
		}
		switch t := tok.(type) {
		case xml.StartElement:
			node := &Node{Name: t.Name.Local}
			for _, a := range t.Attr {
				name := a.Name.Local
				if a.Name.Space != "" {
					name = a.Name.Space + ":" + name
				}
				node.Attrs = append(node.Attrs, Attr{Name: name, Value: a.Value})
			}
			if len(stack) == 0 {
				if root != nil {
					line, _ := dec.InputPos()
					if !lenient {
						return nil, nil, &ParseError{Line: line, Msg: "multiple root elements"}
					}
					warnings = append(warnings, Warning{Line: line, Message: "ignoring extra root element <" + node.Name + ">"})
					_ = dec.Skip()
					continue
				}
				root = node
			} else {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, node)
			}
			stack = append(stack, node)
			texts = append(texts, &strings.Builder{})
		case xml.EndElement:
			if len(stack) == 0 {
				continue
			}
			top := stack[len(stack)-1]
			top.Text = normalizeText(texts[len(texts)-1].String())
			stack = stack[:len(stack)-1]
			texts = texts[:len(texts)-1]
		case xml.CharData:
			if len(texts) > 0 {
				texts[len(texts)-1].Write(t)
			}
		}
	}
	for i := len(stack) - 1; i >= 0; i-- {
		stack[i].Text = normalizeText(texts[i].String())
	}
	if root == nil {
		return nil, nil, &ParseError{Msg: "scene text has no root element"}
	}
	return root, warnings, nil
}

func normalizeText(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	return s
}

// EncodeTree writes the tree as indented UTF-8 XML with a declaration.
func EncodeTree(root *Node) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="utf-8"?>` + "\n")
	encodeNode(&b, root, 0)
	return b.String()
}

func encodeNode(b *strings.Builder, n *Node, depth int) {
	indent := strings.Repeat(" ", depth)
	b.WriteString(indent)
	b.WriteByte('<')
	b.WriteString(n.Name)
	for _, a := range n.Attrs {
		b.WriteByte(' ')
		b.WriteString(a.Name)
		b.WriteString(`="`)
		_ = xml.EscapeText(b, []byte(a.Value))
		b.WriteByte('"')
	}
	switch {
	case len(n.Children) == 0 && n.Text == "":
		b.WriteString("/>\n")
	case len(n.Children) == 0:
		b.WriteByte('>')
		_ = xml.EscapeText(b, []byte(n.Text))
		b.WriteString("</" + n.Name + ">\n")
	default:
		b.WriteString(">\n")
		for _, c := range n.Children {
			encodeNode(b, c, depth+1)
		}
		b.WriteString(indent + "</" + n.Name + ">\n")
	}
}
