// Package eln parses ELN collection exports into a generic element tree.
//
// Exports mix a fixed outer structure (collection, sectionSetView, section,
// object) with data-driven element names inside hierarchy tables (F_95,
// F_96, ...), so the document is kept as a tree of Nodes and queried by path
// rather than unmarshalled into fixed structs.
package eln

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// ErrInvalidUTF8 is returned when the input is not valid UTF-8.
var ErrInvalidUTF8 = errors.New("xml content is not valid UTF-8")

// ParseError wraps a failure of the XML decoder.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return e.Err.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Node is one XML element. Text holds the element's own character data,
// concatenated, untrimmed.
type Node struct {
	Name     string
	Attrs    map[string]string
	Text     string
	Children []*Node
}

// Parse decodes a UTF-8 XML document and returns its root element.
func Parse(data []byte) (*Node, error) {
	if !utf8.Valid(data) {
		return nil, ErrInvalidUTF8
	}

	dec := xml.NewDecoder(bytes.NewReader(data))
	// Content is already known to be UTF-8 whatever the prolog declares.
	dec.CharsetReader = func(_ string, in io.Reader) (io.Reader, error) { return in, nil }

	var (
		root  *Node
		stack []*Node
		text  []*strings.Builder
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &ParseError{Err: err}
		}

		switch t := tok.(type) {
		case xml.StartElement:
			n := &Node{Name: t.Name.Local}
			if len(t.Attr) > 0 {
				n.Attrs = make(map[string]string, len(t.Attr))
				for _, a := range t.Attr {
					n.Attrs[a.Name.Local] = a.Value
				}
			}
			if len(stack) == 0 {
				if root != nil {
					return nil, &ParseError{Err: errors.New("multiple root elements")}
				}
				root = n
			} else {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, n)
			}
			stack = append(stack, n)
			text = append(text, &strings.Builder{})
		case xml.EndElement:
			last := len(stack) - 1
			stack[last].Text = text[last].String()
			stack = stack[:last]
			text = text[:last]
		case xml.CharData:
			if len(stack) > 0 {
				text[len(text)-1].Write(t)
			}
		}
	}

	if root == nil {
		return nil, &ParseError{Err: errors.New("no root element found")}
	}
	if len(stack) > 0 {
		return nil, &ParseError{Err: fmt.Errorf("unclosed element <%s>", stack[len(stack)-1].Name)}
	}
	return root, nil
}

// Attr returns the named attribute, or def when it is absent.
// A present but empty attribute yields "".
func (n *Node) Attr(name, def string) string {
	if n == nil {
		return def
	}
	if v, ok := n.Attrs[name]; ok {
		return v
	}
	return def
}

// HasAttr reports whether the attribute is present.
func (n *Node) HasAttr(name string) bool {
	if n == nil {
		return false
	}
	_, ok := n.Attrs[name]
	return ok
}

// TrimmedText returns Text without surrounding whitespace. Nil-safe.
func (n *Node) TrimmedText() string {
	if n == nil {
		return ""
	}
	return strings.TrimSpace(n.Text)
}

// Child returns the first direct child with the given name, or nil.
func (n *Node) Child(name string) *Node {
	if n == nil {
		return nil
	}
	for _, c := range n.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// ChildrenNamed returns all direct children with the given name, in order.
func (n *Node) ChildrenNamed(name string) []*Node {
	if n == nil {
		return nil
	}
	var out []*Node
	for _, c := range n.Children {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

// FindAll follows a slash separated path of child names ("tableProperty/property")
// and returns every matching element in document order.
func (n *Node) FindAll(path string) []*Node {
	if n == nil {
		return nil
	}
	current := []*Node{n}
	for _, step := range strings.Split(path, "/") {
		if step == "" {
			continue
		}
		var next []*Node
		for _, c := range current {
			next = append(next, c.ChildrenNamed(step)...)
		}
		current = next
		if len(current) == 0 {
			return nil
		}
	}
	return current
}

// Find returns the first element FindAll would return, or nil.
func (n *Node) Find(path string) *Node {
	all := n.FindAll(path)
	if len(all) == 0 {
		return nil
	}
	return all[0]
}

// Descendants returns every element below n (n excluded) with the given name,
// in document order.
func (n *Node) Descendants(name string) []*Node {
	if n == nil {
		return nil
	}
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
