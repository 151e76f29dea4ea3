package extract

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	checklistLine   = regexp.MustCompile(`^([A-Za-z0-9\s().\-]+?)\s+(.+?)(?:\s*■?\s*(\[[A-Z\s/]+\])\s*■?)?$`)
	trailingStatus  = regexp.MustCompile(`(?i)\s*■?\s*(\[[A-Z\s/]+\])\s*■?$`)
	bracketedStatus = regexp.MustCompile(`(?i)\s*\[[A-Z\s/]+\]\s*■?$`)
)

// headerIDs are column captions of the checklist table, not item ids.
var headerIDs = map[string]bool{
	"s. no.":     true,
	"s.no":       true,
	"sr. no.":    true,
	"sr.no":      true,
	"checks":     true,
	"compliance": true,
}

// Checklist maps checklist item ids to their descriptions, keeping the order
// in which ids first appeared.
type Checklist struct {
	ids  []string
	desc map[string]string
}

func (c *Checklist) add(id, description string) {
	if c.desc == nil {
		c.desc = make(map[string]string)
	}
	if _, ok := c.desc[id]; !ok {
		c.ids = append(c.ids, id)
	}
	c.desc[id] = description
}

// Len returns the number of items.
func (c *Checklist) Len() int {
	if c == nil {
		return 0
	}
	return len(c.ids)
}

// Get returns the description stored under id.
func (c *Checklist) Get(id string) (string, bool) {
	if c == nil {
		return "", false
	}
	d, ok := c.desc[id]
	return d, ok
}

// ParseChecklist reads the free-text rendering of a checklist, one item per
// line: "<id> <description> [STATUS]". Lines using the ■ glyph as separator
// are accepted too.
func ParseChecklist(text string) *Checklist {
	c := &Checklist{}
	if text == "" {
		return c
	}
	text = strings.NewReplacer("\r\n", "\n", "\r", "\n").Replace(text)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if m := checklistLine.FindStringSubmatch(line); m != nil {
			id := strings.TrimSpace(m[1])
			description := strings.TrimSpace(m[2])
			if loc := trailingStatus.FindStringIndex(description); loc != nil {
				description = strings.TrimSpace(description[:loc[0]])
			}
			if !headerIDs[strings.ToLower(id)] {
				c.add(id, description)
			}
			continue
		}

		if strings.Contains(line, "■") {
			id, rest, _ := strings.Cut(line, "■")
			id = strings.TrimSpace(id)
			description := bracketedStatus.ReplaceAllString(strings.TrimSpace(rest), "")
			description = strings.TrimSpace(strings.ReplaceAll(strings.TrimSpace(description), "■", " "))
			if id != "" && !headerIDs[strings.ToLower(id)] {
				c.add(id, description)
			}
		}
	}
	return c
}

// Match finds the description for a property heading: exact id first, then
// ignoring trailing dots, then a near prefix match (length difference under 4).
// Empty descriptions count as no match.
func (c *Checklist) Match(id string) string {
	if c.Len() == 0 {
		return ""
	}
	if d, ok := c.desc[id]; ok && d != "" {
		return d
	}

	norm := normalizeID(id)
	for _, key := range c.ids {
		if normalizeID(key) == norm {
			if d := c.desc[key]; d != "" {
				return d
			}
			break
		}
	}

	for _, key := range c.ids {
		keyNorm := normalizeID(key)
		if !strings.HasPrefix(norm, keyNorm) && !strings.HasPrefix(keyNorm, norm) {
			continue
		}
		diff := utf8.RuneCountInString(norm) - utf8.RuneCountInString(keyNorm)
		if diff < 0 {
			diff = -diff
		}
		if diff < 4 {
			return c.desc[key]
		}
	}
	return ""
}

func normalizeID(s string) string {
	return strings.TrimSpace(strings.TrimRight(s, "."))
}

// ChecklistStatus turns stored checkbox values into words.
func ChecklistStatus(value string) string {
	switch value {
	case "true":
		return "Completed"
	case "false":
		return "Not Completed"
	case "":
		return " "
	default:
		return value
	}
}
