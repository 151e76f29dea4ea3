package eln

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `<?xml version="1.0" encoding="ISO-8859-1"?>
<collection name="Batch 42">
  <collectionType name="Seed Train"/>
  <sectionSetView>
    <section name="Prep">
      <object>
        <field name="Metadata"/>
        <propertyInstances>
          <propertyInstance value="7.2"><property name="pH"/></propertyInstance>
        </propertyInstances>
      </object>
    </section>
    <section>
      <object>
        <hierarchyData>
          <table name="T1">
            <row><F_1> a </F_1><F_2>b</F_2></row>
          </table>
        </hierarchyData>
      </object>
    </section>
  </sectionSetView>
</collection>`

func TestParse(t *testing.T) {
	root, err := Parse([]byte(sample))
	require.NoError(t, err)

	assert.Equal(t, "collection", root.Name)
	assert.Equal(t, "Batch 42", root.Attr("name", "N/A"))
	assert.Equal(t, "Seed Train", root.Child("collectionType").Attr("name", ""))

	sections := root.Child("sectionSetView").ChildrenNamed("section")
	require.Len(t, sections, 2)
	assert.Equal(t, "Section 2", sections[1].Attr("name", "Section 2"))

	props := sections[0].FindAll("object/propertyInstances/propertyInstance")
	require.Len(t, props, 1)
	assert.Equal(t, "7.2", props[0].Attr("value", ""))
	assert.Equal(t, "pH", props[0].Find("property").Attr("name", ""))

	cell := root.Descendants("F_1")
	require.Len(t, cell, 1)
	assert.Equal(t, " a ", cell[0].Text)
	assert.Equal(t, "a", cell[0].TrimmedText())
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "mismatched tags", input: "<a><b></a>"},
		{name: "empty input", input: ""},
		{name: "unclosed root", input: "<a><b/>"},
		{name: "text only", input: "just text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root, err := Parse([]byte(tt.input))
			assert.Nil(t, root)

			var perr *ParseError
			assert.True(t, errors.As(err, &perr), "got %v", err)
		})
	}
}

func TestParseInvalidUTF8(t *testing.T) {
	root, err := Parse([]byte{'<', 'a', '>', 0xff, '<', '/', 'a', '>'})
	assert.Nil(t, root)
	assert.ErrorIs(t, err, ErrInvalidUTF8)
}

func TestNilSafeAccessors(t *testing.T) {
	var n *Node

	assert.Nil(t, n.Child("x"))
	assert.Nil(t, n.ChildrenNamed("x"))
	assert.Nil(t, n.Find("a/b"))
	assert.Nil(t, n.Descendants("x"))
	assert.Equal(t, "def", n.Attr("x", "def"))
	assert.False(t, n.HasAttr("x"))
	assert.Empty(t, n.TrimmedText())
}

func TestAttrPresentButEmpty(t *testing.T) {
	root, err := Parse([]byte(`<a name=""/>`))
	require.NoError(t, err)

	assert.True(t, root.HasAttr("name"))
	assert.Equal(t, "", root.Attr("name", "fallback"))
	assert.Equal(t, "fallback", root.Attr("other", "fallback"))
}

func TestDescendantsExcludesSelf(t *testing.T) {
	root, err := Parse([]byte(`<p><p><p/></p></p>`))
	require.NoError(t, err)

	assert.Len(t, root.Descendants("p"), 2)
}

func TestParseMixedContentDeepNesting(t *testing.T) {
	root, err := Parse([]byte(`<a>one<b>two<c>three<d>four</d>five</c>six</b>seven</a>`))
	require.NoError(t, err)
	assert.Equal(t, "oneseven", root.Text)
	b := root.Child("b")
	assert.Equal(t, "twosix", b.Text)
	assert.Equal(t, "threefive", b.Child("c").Text)
	assert.Equal(t, "four", root.Find("b/c/d").Text)
}
