package deploy

import (
	"bufio"
	"bytes"
	"io/fs"
	"path"
	"regexp"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
	"golang.org/x/mod/modfile"
)

// requirementLine matches one PEP 508 style requirement without markers
// after the version specifier, e.g. "reportlab==4.0.4" or "Flask[async]>=2,<3".
var requirementLine = regexp.MustCompile(
	`^[A-Za-z0-9][A-Za-z0-9._-]*(\[[A-Za-z0-9._,\s-]*\])?\s*` +
		`((===|==|!=|~=|<=|>=|<|>)\s*[A-Za-z0-9.*+!_-]+(\s*,\s*(===|==|!=|~=|<=|>=|<|>)\s*[A-Za-z0-9.*+!_-]+)*)?\s*(;.*)?$`)

// CheckContext checks a Dockerfile against its build context: every COPY or
// ADD source must exist and not be excluded by .dockerignore, and dependency
// manifests that are copied must parse, so that an image build with a missing
// or broken manifest is caught before it runs.
func CheckContext(fsys fs.FS, content string) Result {
	var res Result
	excluded := dockerignore(fsys)
	for _, in := range ParseInstructions(content) {
		if in.Command != "COPY" && in.Command != "ADD" {
			continue
		}
		flags, rest := in.Flags()
		if len(rest) < 2 || fromStage(flags) {
			continue
		}
		for _, src := range rest[:len(rest)-1] {
			if strings.Contains(src, "://") || strings.HasPrefix(src, "<<") {
				continue
			}
			checkSource(&res, fsys, excluded, in.Line, src)
		}
	}
	return res
}

func fromStage(flags []string) bool {
	for _, f := range flags {
		if strings.HasPrefix(f, "--from=") {
			return true
		}
	}
	return false
}

// dockerignore compiles the context's .dockerignore. It returns nil when
// there is none.
func dockerignore(fsys fs.FS) *ignore.GitIgnore {
	data, err := fs.ReadFile(fsys, ".dockerignore")
	if err != nil {
		return nil
	}
	lines := strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")
	for i, l := range lines {
		lines[i] = anchorPattern(l)
	}
	return ignore.CompileIgnoreLines(lines...)
}

// anchorPattern rewrites a .dockerignore line into a gitignore pattern with
// the same meaning. Docker matches every pattern from the context root, so
// "*.md" excludes README.md but not docs/README.md; patterns that start with
// "**" keep matching at any depth.
func anchorPattern(line string) string {
	p := strings.TrimSpace(line)
	if p == "" || strings.HasPrefix(p, "#") {
		return p
	}
	neg := ""
	if rest, ok := strings.CutPrefix(p, "!"); ok {
		neg, p = "!", strings.TrimSpace(rest)
	}
	p = path.Clean(strings.TrimPrefix(p, "/"))
	if p == "." {
		return ""
	}
	if !strings.HasPrefix(p, "**") {
		p = "/" + p
	}
	return neg + p
}

func checkSource(res *Result, fsys fs.FS, excluded *ignore.GitIgnore, line int, src string) {
	name := path.Clean(strings.TrimPrefix(src, "/"))
	matches, err := fs.Glob(fsys, name)
	if err == nil && len(matches) == 0 && strings.ContainsAny(name, "*?[") {
		// An optional wildcard source such as go.sum* may match nothing.
		return
	}
	if err != nil || len(matches) == 0 {
		res.add(line, SeverityError, "copy-source-missing", "%s is not in the build context", src)
		return
	}
	if excluded != nil {
		kept := matches[:0]
		for _, m := range matches {
			if m == "." || !excluded.MatchesPath(m) {
				kept = append(kept, m)
			}
		}
		if len(kept) == 0 {
			res.add(line, SeverityError, "copy-source-missing", "%s is excluded by .dockerignore", src)
			return
		}
		matches = kept
	}
	for _, m := range matches {
		switch path.Base(m) {
		case "go.mod":
			checkGoMod(res, fsys, line, m)
		case "requirements.txt":
			checkRequirements(res, fsys, line, m)
		}
	}
}

func checkGoMod(res *Result, fsys fs.FS, line int, name string) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		res.add(line, SeverityError, "manifest-unreadable", "read %s: %v", name, err)
		return
	}
	f, err := modfile.Parse(name, data, nil)
	if err != nil {
		res.add(line, SeverityError, "manifest-malformed", "%v", err)
		return
	}
	if f.Module == nil {
		res.add(line, SeverityError, "manifest-malformed", "%s has no module directive", name)
	}
}

func checkRequirements(res *Result, fsys fs.FS, line int, name string) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		res.add(line, SeverityError, "manifest-unreadable", "read %s: %v", name, err)
		return
	}
	for _, req := range requirementLines(data) {
		text := req.text
		if i := strings.Index(text, " #"); i >= 0 {
			text = strings.TrimSpace(text[:i])
		}
		if text == "" || strings.HasPrefix(text, "#") || strings.HasPrefix(text, "-") || strings.Contains(text, "://") {
			continue
		}
		text = strings.TrimSpace(requirementOption.ReplaceAllString(text, ""))
		if !requirementLine.MatchString(text) {
			res.add(line, SeverityError, "manifest-malformed", "%s:%d: cannot parse requirement %q", name, req.line, text)
		}
	}
}

// requirementOption matches a per-requirement option such as
// --hash=sha256:... that pip accepts after the requirement itself.
var requirementOption = regexp.MustCompile(`\s--[A-Za-z][A-Za-z0-9-]*(=\S*)?`)

type requirement struct {
	text string
	line int
}

// requirementLines returns the logical lines of a requirements file, with
// backslash continuations joined and numbered by their first physical line.
func requirementLines(data []byte) []requirement {
	var (
		out []requirement
		buf strings.Builder
		at  int
	)
	sc := bufio.NewScanner(bytes.NewReader(data))
	n := 0
	for sc.Scan() {
		n++
		text := strings.TrimSpace(sc.Text())
		if buf.Len() == 0 {
			at = n
		}
		if cont, ok := strings.CutSuffix(text, `\`); ok {
			buf.WriteString(cont)
			buf.WriteByte(' ')
			continue
		}
		buf.WriteString(text)
		out = append(out, requirement{text: strings.TrimSpace(buf.String()), line: at})
		buf.Reset()
	}
	if buf.Len() > 0 {
		out = append(out, requirement{text: strings.TrimSpace(buf.String()), line: at})
	}
	return out
}
