package report

import (
	"archive/zip"
	"bytes"
	"encoding/base64"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"elnreport/internal/eln"
	"elnreport/internal/schema"
)

func kinds(doc *Document) []Kind {
	out := make([]Kind, len(doc.Blocks))
	for i, b := range doc.Blocks {
		out[i] = b.Kind
	}
	return out
}

func TestLayoutTableNormal(t *testing.T) {
	blocks := LayoutTable("Metadata", []string{"Property", "Value"}, [][]string{{"pH", "7"}}, PropertyPalette)
	require.Len(t, blocks, 2)

	assert.Equal(t, Note, blocks[0].Kind)
	assert.Equal(t, "Table 'Metadata' (2 columns, Normal Layout):", blocks[0].Text)

	tbl := blocks[1].Table
	require.NotNil(t, tbl)
	assert.Equal(t, [][]string{{"Property", "Value"}, {"pH", "7"}}, tbl.Rows)
	assert.Equal(t, []float64{AvailableWidth / 2, AvailableWidth / 2}, tbl.ColWidths)
	assert.Equal(t, 8.0, tbl.FontSize)
	assert.Equal(t, PropertyPalette, tbl.Palette)
	assert.True(t, tbl.RepeatHeader)
	assert.False(t, tbl.HeaderColumn)
}

func TestLayoutTableSingleColumn(t *testing.T) {
	blocks := LayoutTable("Notes", []string{"Text"}, nil, SectionPalette)
	require.Len(t, blocks, 2)
	assert.Equal(t, "Table 'Notes' (1 column, Normal Layout):", blocks[0].Text)
	assert.False(t, blocks[1].Table.RepeatHeader)
}

func TestLayoutTableFontSizes(t *testing.T) {
	for _, tt := range []struct {
		cols int
		want float64
	}{{10, 8}, {11, 7}, {18, 7}, {19, 6}, {25, 6}} {
		t.Run(fmt.Sprint(tt.cols), func(t *testing.T) {
			headers := make([]string, tt.cols)
			for i := range headers {
				headers[i] = fmt.Sprintf("H%d", i)
			}
			blocks := LayoutTable("t", headers, nil, HierarchyPalette)
			require.Len(t, blocks, 2)
			assert.Equal(t, tt.want, blocks[1].Table.FontSize)
		})
	}
}

func TestColumnWidthsMinimum(t *testing.T) {
	// 0.4in minimum would overflow a 10in page with 30 columns, so widths
	// are scaled back to fit.
	widths := columnWidths(30, 10*Inch)
	require.Len(t, widths, 30)
	total := 0.0
	for _, w := range widths {
		total += w
	}
	assert.InDelta(t, 10*Inch, total, 0.001)

	widths = columnWidths(4, 100)
	assert.InDelta(t, 25.0, widths[0], 0.001)

	assert.Nil(t, columnWidths(0, 100))
}

func TestLayoutTableTransposed(t *testing.T) {
	headers := make([]string, 26)
	row := make([]string, 26)
	for i := range headers {
		headers[i] = fmt.Sprintf("H%d", i+1)
		row[i] = fmt.Sprintf("v%d", i+1)
	}
	blocks := LayoutTable("Wide", headers, [][]string{row}, WorkbookPalette)
	require.Len(t, blocks, 2)
	assert.Equal(t, "Table 'Wide' (Vertical Layout):", blocks[0].Text)

	tbl := blocks[1].Table
	require.Len(t, tbl.Rows, 26)
	assert.Equal(t, []string{"H1", "v1"}, tbl.Rows[0])
	assert.Equal(t, []string{"H26", "v26"}, tbl.Rows[25])
	assert.Nil(t, tbl.ColWidths)
	assert.Equal(t, 7.0, tbl.FontSize)
	assert.True(t, tbl.HeaderColumn)
	assert.Equal(t, WorkbookPalette, tbl.Palette)
}

func TestLayoutTableEmpty(t *testing.T) {
	assert.Nil(t, LayoutTable("x", nil, nil, SectionPalette))
	assert.Nil(t, LayoutTable("x", []string{" ", ""}, nil, SectionPalette))
	assert.Nil(t, LayoutTable("x", nil, [][]string{{}}, SectionPalette))

	blocks := LayoutTable("x", nil, [][]string{{"a", "b"}}, SectionPalette)
	require.Len(t, blocks, 2)
	assert.Equal(t, [][]string{{" ", " "}, {"a", "b"}}, blocks[1].Table.Rows)

	wide := make([]string, 30)
	assert.Nil(t, LayoutTable("x", wide, [][]string{wide}, SectionPalette))
}

func TestFromXMLParseError(t *testing.T) {
	doc, err := FromXML([]byte("<collection><unclosed></collection>"), nil)
	require.Error(t, err)
	require.NotNil(t, doc)
	require.Len(t, doc.Blocks, 1)
	assert.Equal(t, ErrorText, doc.Blocks[0].Kind)
	assert.True(t, strings.HasPrefix(doc.Blocks[0].Text, "XML Parsing Error: "))
}

func TestFromXMLInvalidUTF8(t *testing.T) {
	doc, err := FromXML([]byte{'<', 'a', '>', 0xff, '<', '/', 'a', '>'}, nil)
	assert.ErrorIs(t, err, eln.ErrInvalidUTF8)
	assert.Nil(t, doc)
}

func TestBuildHeader(t *testing.T) {
	doc, err := FromXML([]byte(`<collection name="Batch 7"><collectionType name="Cell Culture"/></collection>`), nil)
	require.NoError(t, err)
	assert.Equal(t, []Kind{Heading1, Heading2, Spacer, Paragraph}, kinds(doc))
	assert.Equal(t, []string{
		"Report: Batch 7",
		"Type: Cell Culture",
		"No 'sectionSetView' (main content) found in the XML.",
	}, doc.Text())

	doc, err = FromXML([]byte(`<collection><collectionType/></collection>`), nil)
	require.NoError(t, err)
	assert.Equal(t, "Report: N/A Collection", doc.Blocks[0].Text)
	assert.Equal(t, []Kind{Heading1, Spacer, Paragraph}, kinds(doc))
}

func TestBuildNoDisplayableContent(t *testing.T) {
	for _, x := range []string{
		`<collection name="c"><sectionSetView/></collection>`,
		`<collection name="c"><sectionSetView><section name="s"><object><field name="f"/></object></section></sectionSetView></collection>`,
	} {
		doc, err := FromXML([]byte(x), nil)
		require.NoError(t, err)
		require.Len(t, doc.Blocks, 1)
		assert.Equal(t, "No displayable content found in the XML after processing.", doc.Blocks[0].Text)
	}
}

const sectionsXML = `<collection name="Run">
  <sectionSetView>
    <section name="Prep">
      <object>
        <field name="Metadata"/>
        <propertyInstances>
          <propertyInstance value="7.4"><property name="pH"/></propertyInstance>
        </propertyInstances>
      </object>
      <object>
        <field/>
        <styledText><text>single line note</text></styledText>
      </object>
      <object><styledText><text>no field, ignored</text></styledText></object>
    </section>
    <section>
      <object>
        <field name="Observations"/>
        <styledText><text>line one
line two</text></styledText>
      </object>
    </section>
    <section name="Empty"/>
  </sectionSetView>
</collection>`

func TestBuildSections(t *testing.T) {
	doc, err := FromXML([]byte(sectionsXML), nil)
	require.NoError(t, err)

	assert.Equal(t, []Kind{
		Heading1, Spacer,
		Heading2, Heading3, Note, TableBlock, Spacer, Paragraph, Spacer,
		PageBreak,
		Heading2, Heading3, Code, Spacer,
	}, kinds(doc))

	assert.Equal(t, "Prep", doc.Blocks[2].Text)
	assert.Equal(t, "Metadata", doc.Blocks[3].Text)
	assert.Equal(t, "single line note", doc.Blocks[7].Text)
	assert.Equal(t, "Section 2", doc.Blocks[10].Text)
	assert.Equal(t, "line one\nline two", doc.Blocks[12].Text)

	tables := doc.Tables()
	require.Len(t, tables, 1)
	assert.Equal(t, [][]string{{"Property", "Value"}, {"pH", "7.4"}}, tables[0].Rows)
	assert.Equal(t, PropertyPalette, tables[0].Palette)
}

func TestBuildTrailingPageBreakDropped(t *testing.T) {
	doc, err := FromXML([]byte(`<collection><sectionSetView>
		<section name="A"><object><field name="f"/><addin data="{}"/></object></section>
		<section name="B"><object><field name="g"/><addin data="[]"/></object></section>
	</sectionSetView></collection>`), nil)
	require.NoError(t, err)
	assert.Equal(t, []Kind{
		Heading1, Spacer,
		Heading2, Heading3, Code, Spacer, PageBreak,
		Heading2, Heading3, Code, Spacer,
	}, kinds(doc))
}

const checklistXML = `<collection><sectionSetView><section name="QC">
  <object>
    <field name="Checklist"/>
    <styledText><text>S.No Checks Compliance
1. Verify calibration [YES]
2. Label tubes [NO]</text></styledText>
  </object>
  <object>
    <field name="Check List"/>
    <propertyInstances>
      <propertyInstance value="true"><property name="1"/></propertyInstance>
      <propertyInstance value="false"><property name="2."/></propertyInstance>
      <propertyInstance value=""><property name="3"/></propertyInstance>
    </propertyInstances>
  </object>
</section></sectionSetView></collection>`

func TestBuildChecklist(t *testing.T) {
	doc, err := FromXML([]byte(checklistXML), nil)
	require.NoError(t, err)

	// The checklist text itself is folded into the table, not printed.
	assert.Equal(t, []Kind{Heading1, Spacer, Heading2, Heading3, Note, TableBlock, Spacer}, kinds(doc))
	assert.Equal(t, "Check List", doc.Blocks[3].Text)

	tables := doc.Tables()
	require.Len(t, tables, 1)
	assert.Equal(t, [][]string{
		{"Checklist Item", "Status"},
		{"1: Verify calibration", "Completed"},
		{"2.: Label tubes", "Not Completed"},
		{"3", " "},
	}, tables[0].Rows)
}

func TestBuildChecklistWithoutText(t *testing.T) {
	doc, err := FromXML([]byte(`<collection><sectionSetView><section>
		<object><field name="checklist"/><propertyInstances>
			<propertyInstance value="true"><property name="A"/></propertyInstance>
		</propertyInstances></object>
	</section></sectionSetView></collection>`), nil)
	require.NoError(t, err)
	tables := doc.Tables()
	require.Len(t, tables, 1)
	assert.Equal(t, [][]string{{"Checklist Item", "Status"}, {"A", "Completed"}}, tables[0].Rows)
}

func TestBuildPropertyFieldsOnly(t *testing.T) {
	// Property instances of other fields fall through to later renderers.
	doc, err := FromXML([]byte(`<collection><sectionSetView><section>
		<object><field name="Other"/>
			<propertyInstances><propertyInstance value="1"><property name="x"/></propertyInstance></propertyInstances>
			<styledText><text>shown</text></styledText>
		</object>
	</section></sectionSetView></collection>`), nil)
	require.NoError(t, err)
	assert.Contains(t, doc.Text(), "shown")
	assert.Empty(t, doc.Tables())
}

func TestBuildStyledTextTruncated(t *testing.T) {
	long := strings.Repeat("a", styledTextLimit+10)
	doc, err := FromXML([]byte(`<collection><sectionSetView><section><object><field name="f"/><styledText><text>`+long+`</text></styledText></object></section></sectionSetView></collection>`), nil)
	require.NoError(t, err)
	var para string
	for _, b := range doc.Blocks {
		if b.Kind == Paragraph {
			para = b.Text
		}
	}
	assert.Equal(t, strings.Repeat("a", styledTextLimit)+"...", para)
}

func TestBuildTableSectionAndHierarchy(t *testing.T) {
	snap := schema.NewSnapshot(map[string]schema.Mapping{
		"Media Equilibration": {"F_95": "Vessel", "F_96": "Start"},
	})
	doc, err := FromXML([]byte(`<collection><sectionSetView><section name="Data">
		<object><field name="Readings"/><tableSection>
			<tableProperty><property name="Time"/><property name="OD"/></tableProperty>
			<tableRow><tableCell value="0"/><tableCell value="0.1"/></tableRow>
		</tableSection></object>
		<object><field name="Unnamed Field 2"/><hierarchyData>
			<table name="Media Equilibration"><row><F_95>T75</F_95><F_96>09:00</F_96></row></table>
		</hierarchyData></object>
	</section></sectionSetView></collection>`), snap)
	require.NoError(t, err)

	assert.Equal(t, []Kind{
		Heading1, Spacer, Heading2,
		Heading3, Note, TableBlock, Spacer,
		Heading4, Note, TableBlock, Spacer,
	}, kinds(doc))
	assert.Equal(t, "Data Table: Media Equilibration", doc.Blocks[7].Text)

	tables := doc.Tables()
	require.Len(t, tables, 2)
	assert.Equal(t, SectionPalette, tables[0].Palette)
	assert.Equal(t, [][]string{{"Time", "OD"}, {"0", "0.1"}}, tables[0].Rows)
	assert.Equal(t, HierarchyPalette, tables[1].Palette)
	assert.Equal(t, [][]string{{"Vessel", "Start"}, {"T75", "09:00"}}, tables[1].Rows)
}

func TestBuildAncillaryFallback(t *testing.T) {
	doc, err := FromXML([]byte(`<collection><sectionSetView><section>
		<object><field name="Image"/><addin data="  "/><ancillaryData extension="png"/></object>
	</section></sectionSetView></collection>`), nil)
	require.NoError(t, err)
	assert.Contains(t, doc.Text(), "Note: Ancillary data found with extension 'png' for field 'Image'. Specific rendering not implemented.")
}

func TestBuildWordError(t *testing.T) {
	doc, err := FromXML([]byte(`<collection><sectionSetView><section>
		<object><field name="Protocol"/><document documentType="1">bm90IGEgZG9jeA==</document></object>
	</section></sectionSetView></collection>`), nil)
	require.NoError(t, err)

	var note string
	for _, b := range doc.Blocks {
		if b.Kind == Note {
			note = b.Text
		}
	}
	assert.True(t, strings.HasPrefix(note, "Error extracting text from Word document: "), note)
	assert.True(t, strings.HasSuffix(note, "..."))
}

func TestBuildUnknownDocumentType(t *testing.T) {
	doc, err := FromXML([]byte(`<collection><sectionSetView><section>
		<object><field name="Blob"/><document documentType="9">AAAA</document></object>
	</section></sectionSetView></collection>`), nil)
	require.NoError(t, err)
	require.Len(t, doc.Blocks, 1)
	assert.Equal(t, "No displayable content found in the XML after processing.", doc.Blocks[0].Text)
}

func embeddedDocument(field, docType, content string) []byte {
	return []byte(fmt.Sprintf(`<collection name="C"><sectionSetView><section name="S">
		<object><field name="%s"/><document documentType="%s">%s</document></object>
	</section></sectionSetView></collection>`, field, docType, content))
}

func TestBuildEmbeddedWorkbook(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetCellValue("Sheet1", "A1", "Lot"))
	require.NoError(t, f.SetCellValue("Sheet1", "B1", "Qty"))
	require.NoError(t, f.SetCellValue("Sheet1", "A2", "L-1"))
	require.NoError(t, f.SetCellValue("Sheet1", "B2", 12))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	b64 := base64.StdEncoding.EncodeToString(buf.Bytes())

	doc, err := FromXML(embeddedDocument("Data", "2", b64), nil)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"Report: C",
		"S",
		"Data",
		"Sheet: Sheet1 (from Data)",
		"Table 'Sheet1' (2 columns, Normal Layout):",
	}, doc.Text())
	assert.Equal(t, []Kind{Heading1, Spacer, Heading2, Heading3, Heading4, Note, TableBlock, Spacer}, kinds(doc))

	tables := doc.Tables()
	require.Len(t, tables, 1)
	assert.Equal(t, [][]string{{"Lot", "Qty"}, {"L-1", "12"}}, tables[0].Rows)
	assert.Equal(t, WorkbookPalette, tables[0].Palette)
}

func TestBuildEmbeddedWord(t *testing.T) {
	long := strings.Repeat("x", wordTextLimit+100)
	documentXML := `<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		`<w:p><w:r><w:t>Batch record</w:t></w:r></w:p>` +
		`<w:p><w:r><w:t>` + long + `</w:t></w:r></w:p>` +
		`</w:body></w:document>`

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(documentXML))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	doc, err := FromXML(embeddedDocument("Protocol", "1", base64.StdEncoding.EncodeToString(buf.Bytes())), nil)
	require.NoError(t, err)
	require.Equal(t, []Kind{Heading1, Spacer, Heading2, Heading3, Heading4, Code, Spacer}, kinds(doc))

	assert.Equal(t, "Content from Word Document (Protocol):", doc.Blocks[4].Text)
	code := doc.Blocks[5].Text
	assert.True(t, strings.HasPrefix(code, "Batch record\n"), code[:20])
	assert.True(t, strings.HasSuffix(code, "..."))
	assert.Equal(t, wordTextLimit+len("..."), len([]rune(code)))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "table", TableBlock.String())
	assert.Equal(t, "page_break", PageBreak.String())
	assert.Equal(t, "unknown", Kind(0).String())
}
