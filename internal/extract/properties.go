// Package extract pulls displayable data out of ELN export elements:
// property lists, styled text, checklists, table sections, hierarchy tables
// and embedded Word/Excel documents.
package extract

import (
	"strings"

	"elnreport/internal/eln"
)

// Property is one heading/value pair of a propertyInstances block.
type Property struct {
	Property string
	Value    string
}

// Properties reads the propertyInstance children of n. Pairs where both the
// heading and the value are blank are dropped.
func Properties(n *eln.Node) []Property {
	if n == nil {
		return nil
	}
	var out []Property
	for _, pi := range n.ChildrenNamed("propertyInstance") {
		value := pi.Attr("value", "")
		heading := "N/A"
		if p := pi.Child("property"); p != nil {
			heading = p.Attr("name", "")
		}
		if strings.TrimSpace(heading) != "" || strings.TrimSpace(value) != "" {
			out = append(out, Property{Property: heading, Value: value})
		}
	}
	return out
}

// TextKind tells where StyledText found its content.
type TextKind string

const (
	TextPlain TextKind = "text"
	TextRTF   TextKind = "rtf"
	TextRaw   TextKind = "raw"
)

// StyledText returns the trimmed text child of a styledText element, falling
// back to its data child (RTF payload). An element with neither yields ("", TextRaw).
func StyledText(n *eln.Node) (string, TextKind) {
	if n == nil {
		return "", TextRaw
	}
	if s := n.Child("text").TrimmedText(); s != "" {
		return s, TextPlain
	}
	if s := n.Child("data").TrimmedText(); s != "" {
		return s, TextRTF
	}
	return "", TextRaw
}

// Truncate cuts s to limit runes and appends "..." when it was longer.
func Truncate(s string, limit int) string {
	n := 0
	for i := range s {
		if n == limit {
			return s[:i] + "..."
		}
		n++
	}
	return s
}
