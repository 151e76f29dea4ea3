package extract

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"elnreport/internal/eln"
	"elnreport/internal/schema"
)

// Table is a named grid of strings with a header row.
type Table struct {
	Name    string
	Headers []string
	Rows    [][]string
}

func colHeaders(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("Col%d", i+1)
	}
	return out
}

// TableSection reads a tableSection element. Headers come from
// tableProperty/property names; every row is sized to the header count (or,
// without headers, to its own cell count, or the first row's).
func TableSection(n *eln.Node) (headers []string, rows [][]string) {
	if n == nil {
		return nil, nil
	}
	for i, p := range n.FindAll("tableProperty/property") {
		headers = append(headers, p.Attr("name", fmt.Sprintf("Col%d", i+1)))
	}

	tableRows := n.ChildrenNamed("tableRow")
	for _, tr := range tableRows {
		cells := tr.ChildrenNamed("tableCell")
		width := len(headers)
		if width == 0 {
			width = len(cells)
		}
		if width == 0 && len(headers) == 0 {
			width = len(tableRows[0].ChildrenNamed("tableCell"))
		}
		row := make([]string, width)
		for i := 0; i < width && i < len(cells); i++ {
			row[i] = cells[i].Attr("value", "")
		}
		rows = append(rows, row)
	}

	if len(headers) == 0 && len(rows) > 0 && len(rows[0]) > 0 {
		headers = colHeaders(len(rows[0]))
	}
	return headers, rows
}

// HierarchyTables reads the table children of a hierarchyData element. Only
// columns with a display name in the snapshot are kept, in the order they
// first appear across rows. A table without rows shows every mapped F_ column
// sorted by key. Tables left without columns are omitted.
func HierarchyTables(n *eln.Node, snap *schema.Snapshot) []Table {
	if n == nil {
		return nil
	}
	var out []Table
	for _, tbl := range n.ChildrenNamed("table") {
		name := tbl.Attr("name", "Unnamed Hierarchy Table")
		mapping := snap.Table(name)
		rowNodes := tbl.ChildrenNamed("row")

		seen := make(map[string]bool)
		var tags []string
		for _, row := range rowNodes {
			for _, cell := range row.Children {
				if seen[cell.Name] {
					continue
				}
				seen[cell.Name] = true
				if _, ok := mapping[cell.Name]; ok {
					tags = append(tags, cell.Name)
				}
			}
		}

		if len(tags) == 0 && len(rowNodes) == 0 && len(mapping) > 0 {
			for tag := range mapping {
				if strings.HasPrefix(tag, "F_") {
					tags = append(tags, tag)
				}
			}
			sortTags(tags)
		}
		if len(tags) == 0 {
			continue
		}

		headers := make([]string, len(tags))
		for i, tag := range tags {
			headers[i] = mapping[tag]
		}

		rows := make([][]string, 0, len(rowNodes))
		for _, row := range rowNodes {
			values := make([]string, len(tags))
			for i, tag := range tags {
				values[i] = row.Child(tag).TrimmedText()
			}
			rows = append(rows, values)
		}

		out = append(out, Table{Name: name, Headers: headers, Rows: rows})
	}
	return out
}

// sortTags orders F_<n> tags numerically; tags without a numeric key go last.
func sortTags(tags []string) {
	key := func(tag string) int {
		parts := strings.Split(tag, "_")
		if len(parts) > 1 {
			if n, err := strconv.Atoi(parts[1]); err == nil && n >= 0 {
				return n
			}
		}
		return 9999
	}
	sort.SliceStable(tags, func(i, j int) bool {
		ki, kj := key(tags[i]), key(tags[j])
		if ki != kj {
			return ki < kj
		}
		return tags[i] < tags[j]
	})
}
