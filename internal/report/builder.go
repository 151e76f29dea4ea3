package report

import (
	"errors"
	"fmt"
	"strings"

	"elnreport/internal/eln"
	"elnreport/internal/extract"
	"elnreport/internal/schema"
)

// Truncation limits, in characters.
const (
	styledTextLimit = 2500
	wordTextLimit   = 3000
	addinDataLimit  = 2000
	wordErrorLimit  = 100
)

const (
	titleSpacer  = 0.1 * Inch
	objectSpacer = 0.05 * Inch
)

// propertyTableFields are the field names (lower case) whose property
// instances are shown as a Property/Value table.
var propertyTableFields = map[string]bool{
	"metadata":                       true,
	"checklist":                      true,
	"check list":                     true,
	"mixing and stirring-filtration": true,
	"sop":                            true,
}

func isChecklistField(normalized string) bool {
	return normalized == "checklist" || normalized == "check list"
}

// FromXML parses an ELN export and builds its layout. A document that is
// not well formed still produces a layout carrying the parse error, which
// is returned alongside it.
func FromXML(data []byte, snap *schema.Snapshot) (*Document, error) {
	root, err := eln.Parse(data)
	if err != nil {
		if errors.Is(err, eln.ErrInvalidUTF8) {
			return nil, err
		}
		doc := &Document{}
		doc.add(Block{Kind: ErrorText, Text: "XML Parsing Error: " + err.Error()})
		return doc, err
	}
	return Build(root, snap), nil
}

// Build lays out a parsed collection.
func Build(root *eln.Node, snap *schema.Snapshot) *Document {
	doc := &Document{}
	doc.add(Block{Kind: Heading1, Text: "Report: " + root.Attr("name", "N/A Collection")})
	if ct := root.Child("collectionType"); ct != nil {
		if name := ct.Attr("name", ""); name != "" {
			doc.add(Block{Kind: Heading2, Text: "Type: " + name})
		}
	}
	doc.add(Block{Kind: Spacer, Height: titleSpacer})

	view := root.Child("sectionSetView")
	if view == nil {
		doc.add(Block{Kind: Paragraph, Text: "No 'sectionSetView' (main content) found in the XML."})
		return doc
	}

	sections := view.ChildrenNamed("section")
	rendered := 0
	for i, sec := range sections {
		blocks := buildSection(sec, snap)
		if len(blocks) == 0 {
			continue
		}
		rendered++
		doc.add(Block{Kind: Heading2, Text: sec.Attr("name", fmt.Sprintf("Section %d", i+1))})
		doc.add(blocks...)
		if i < len(sections)-1 {
			doc.add(Block{Kind: PageBreak})
		}
	}

	if rendered == 0 {
		return &Document{Blocks: []Block{{Kind: Paragraph, Text: "No displayable content found in the XML after processing."}}}
	}
	if n := len(doc.Blocks); doc.Blocks[n-1].Kind == PageBreak {
		doc.Blocks = doc.Blocks[:n-1]
	}
	return doc
}

// sectionChecklist finds the first checklist field in a section that carries
// plain styled text and parses it.
func sectionChecklist(sec *eln.Node) (raw string, list *extract.Checklist) {
	for _, obj := range sec.ChildrenNamed("object") {
		field := obj.Child("field")
		if field == nil {
			continue
		}
		if !isChecklistField(strings.ToLower(strings.TrimSpace(field.Attr("name", "")))) {
			continue
		}
		st := obj.Child("styledText")
		if st == nil {
			continue
		}
		text, kind := extract.StyledText(st)
		if text != "" && kind == extract.TextPlain {
			return text, extract.ParseChecklist(text)
		}
	}
	return "", nil
}

type sectionBuilder struct {
	snap          *schema.Snapshot
	checklistRaw  string
	checklist     *extract.Checklist
	fieldName     string
	normalizedKey string
}

func buildSection(sec *eln.Node, snap *schema.Snapshot) []Block {
	b := &sectionBuilder{snap: snap}
	b.checklistRaw, b.checklist = sectionChecklist(sec)

	var out []Block
	for i, obj := range sec.ChildrenNamed("object") {
		field := obj.Child("field")
		if field == nil {
			continue
		}
		defaultName := fmt.Sprintf("Unnamed Field %d", i+1)
		b.fieldName = field.Attr("name", defaultName)
		b.normalizedKey = strings.ToLower(strings.TrimSpace(b.fieldName))

		blocks := b.object(obj)
		if len(blocks) == 0 {
			continue
		}
		if b.fieldName != "" && b.fieldName != defaultName {
			out = append(out, Block{Kind: Heading3, Text: b.fieldName})
		}
		out = append(out, blocks...)
		out = append(out, Block{Kind: Spacer, Height: objectSpacer})
	}
	return out
}

// object returns the blocks of the first content renderer that produces
// anything for obj.
func (b *sectionBuilder) object(obj *eln.Node) []Block {
	renderers := []func(*eln.Node) []Block{
		b.propertyTable,
		b.styledText,
		b.tableSection,
		b.hierarchy,
		b.embeddedDocument,
		b.addin,
		b.ancillary,
	}
	for _, render := range renderers {
		if blocks := render(obj); len(blocks) > 0 {
			return blocks
		}
	}
	return nil
}

func (b *sectionBuilder) propertyTable(obj *eln.Node) []Block {
	pis := obj.Child("propertyInstances")
	if pis == nil || len(pis.Children) == 0 || !propertyTableFields[b.normalizedKey] {
		return nil
	}
	props := extract.Properties(pis)
	headers := []string{"Property", "Value"}
	rows := make([][]string, 0, len(props))

	if isChecklistField(b.normalizedKey) && len(props) > 0 {
		headers = []string{"Checklist Item", "Status"}
		for _, p := range props {
			label := p.Property
			if desc := b.checklist.Match(p.Property); desc != "" {
				label = p.Property + ": " + desc
			}
			rows = append(rows, []string{label, extract.ChecklistStatus(p.Value)})
		}
	} else {
		for _, p := range props {
			rows = append(rows, []string{p.Property, p.Value})
		}
	}
	return LayoutTable(b.fieldName, headers, rows, PropertyPalette)
}

func (b *sectionBuilder) styledText(obj *eln.Node) []Block {
	st := obj.Child("styledText")
	if st == nil {
		return nil
	}
	text, kind := extract.StyledText(st)
	if text == "" || kind != extract.TextPlain {
		return nil
	}
	if b.checklistRaw != "" && text == b.checklistRaw && b.checklist.Len() > 0 {
		return nil
	}
	display := extract.Truncate(text, styledTextLimit)
	if strings.Contains(text, "\n") {
		return []Block{{Kind: Code, Text: display}}
	}
	return []Block{{Kind: Paragraph, Text: display}}
}

func (b *sectionBuilder) tableSection(obj *eln.Node) []Block {
	ts := obj.Child("tableSection")
	if ts == nil {
		return nil
	}
	headers, rows := extract.TableSection(ts)
	return LayoutTable(b.fieldName, headers, rows, SectionPalette)
}

func (b *sectionBuilder) hierarchy(obj *eln.Node) []Block {
	hd := obj.Child("hierarchyData")
	if hd == nil {
		return nil
	}
	var out []Block
	for _, t := range extract.HierarchyTables(hd, b.snap) {
		blocks := LayoutTable(t.Name, t.Headers, t.Rows, HierarchyPalette)
		if len(blocks) == 0 {
			continue
		}
		out = append(out, Block{Kind: Heading4, Text: "Data Table: " + t.Name})
		out = append(out, blocks...)
	}
	return out
}

func (b *sectionBuilder) embeddedDocument(obj *eln.Node) []Block {
	d := obj.Child("document")
	if d == nil {
		return nil
	}
	content := strings.TrimSpace(d.Text)
	if content == "" {
		return nil
	}
	switch d.Attr("documentType", "") {
	case extract.DocumentWord:
		text, err := extract.WordText(content)
		if err != nil {
			msg := extract.Truncate(err.Error(), wordErrorLimit)
			if !strings.HasSuffix(msg, "...") {
				msg += "..."
			}
			return []Block{{Kind: Note, Text: "Error extracting text from Word document: " + msg}}
		}
		if strings.TrimSpace(text) == "" {
			return nil
		}
		return []Block{
			{Kind: Heading4, Text: fmt.Sprintf("Content from Word Document (%s):", b.fieldName)},
			{Kind: Code, Text: extract.Truncate(text, wordTextLimit)},
		}
	case extract.DocumentExcel:
		var out []Block
		for _, sheet := range extract.Workbook(content) {
			blocks := LayoutTable(sheet.Name, sheet.Headers, sheet.Rows, WorkbookPalette)
			if len(blocks) == 0 {
				continue
			}
			out = append(out, Block{Kind: Heading4, Text: fmt.Sprintf("Sheet: %s (from %s)", sheet.Name, b.fieldName)})
			out = append(out, blocks...)
		}
		return out
	}
	return nil
}

func (b *sectionBuilder) addin(obj *eln.Node) []Block {
	a := obj.Child("addin")
	if a == nil {
		return nil
	}
	data := a.Attr("data", "")
	if strings.TrimSpace(data) == "" {
		return nil
	}
	return []Block{{Kind: Code, Text: extract.Truncate(data, addinDataLimit)}}
}

func (b *sectionBuilder) ancillary(obj *eln.Node) []Block {
	a := obj.Child("ancillaryData")
	if a == nil {
		return nil
	}
	ext := a.Attr("extension", "")
	if ext == "" {
		return nil
	}
	return []Block{{Kind: Small, Text: fmt.Sprintf(
		"Note: Ancillary data found with extension '%s' for field '%s'. Specific rendering not implemented.",
		ext, b.fieldName)}}
}
