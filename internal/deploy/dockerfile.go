package deploy

import (
	"encoding/json"
	"fmt"
	"path"
	"regexp"
	"slices"
	"strings"
)

// Severity of a Finding.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Finding is one problem found in a Dockerfile.
type Finding struct {
	Line     int      `json:"line"`
	Severity Severity `json:"severity"`
	Rule     string   `json:"rule"`
	Message  string   `json:"message"`
}

func (f Finding) String() string {
	if f.Line > 0 {
		return fmt.Sprintf("line %d: %s [%s] %s", f.Line, f.Severity, f.Rule, f.Message)
	}
	return fmt.Sprintf("%s [%s] %s", f.Severity, f.Rule, f.Message)
}

// Result collects the findings of a check.
type Result struct {
	Findings []Finding `json:"findings"`
}

func (r *Result) add(line int, sev Severity, rule, format string, args ...any) {
	r.Findings = append(r.Findings, Finding{Line: line, Severity: sev, Rule: rule, Message: fmt.Sprintf(format, args...)})
}

// HasErrors reports whether any finding is an error.
func (r Result) HasErrors() bool {
	for _, f := range r.Findings {
		if f.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Rules returns the rule names of all findings, in order.
func (r Result) Rules() []string {
	out := make([]string, len(r.Findings))
	for i, f := range r.Findings {
		out[i] = f.Rule
	}
	return out
}

// Instruction is one logical Dockerfile instruction. Args is the raw text
// after the command, with line continuations joined.
type Instruction struct {
	Command string
	Args    string
	Line    int
}

// Exec returns the argument vector of an exec-form (JSON array) instruction.
// ok is false for shell form.
func (i Instruction) Exec() (argv []string, ok bool) {
	s := strings.TrimSpace(i.Args)
	if !strings.HasPrefix(s, "[") {
		return nil, false
	}
	if err := json.Unmarshal([]byte(s), &argv); err != nil {
		// Docker falls back to shell form for an invalid JSON array.
		return nil, false
	}
	return argv, true
}

// Flags splits leading --flag arguments (as used by COPY and ADD) from the
// rest of the instruction's first line.
func (i Instruction) Flags() (flags, rest []string) {
	first, _, _ := strings.Cut(i.Args, "\n")
	fields := strings.Fields(first)
	for len(fields) > 0 && strings.HasPrefix(fields[0], "--") {
		flags = append(flags, fields[0])
		fields = fields[1:]
	}
	return flags, fields
}

var validInstructions = map[string]bool{
	"FROM": true, "RUN": true, "CMD": true, "LABEL": true, "EXPOSE": true,
	"ENV": true, "ADD": true, "COPY": true, "ENTRYPOINT": true, "VOLUME": true,
	"USER": true, "WORKDIR": true, "ARG": true, "ONBUILD": true, "STOPSIGNAL": true,
	"HEALTHCHECK": true, "SHELL": true, "MAINTAINER": true,
}

// heredocStart matches a BuildKit heredoc opener such as <<EOF, <<-EOT or
// <<"EOF" and captures its terminator.
var heredocStart = regexp.MustCompile(`<<-?\s*["']?([A-Za-z_][A-Za-z0-9_]*)["']?`)

// ParseInstructions splits Dockerfile content into instructions. Comments
// and blank lines are skipped and backslash continuations are joined.
// Heredoc bodies are appended to their instruction's Args, one line each.
func ParseInstructions(content string) []Instruction {
	var (
		out      []Instruction
		buf      strings.Builder
		startLn  int
		heredocs []string
	)
	flush := func() {
		text := strings.TrimSpace(buf.String())
		buf.Reset()
		if text == "" {
			return
		}
		cmd, args, _ := strings.Cut(text, " ")
		out = append(out, Instruction{Command: strings.ToUpper(cmd), Args: strings.TrimSpace(args), Line: startLn})
		for _, m := range heredocStart.FindAllStringSubmatch(args, -1) {
			heredocs = append(heredocs, m[1])
		}
	}

	for i, line := range strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n") {
		trimmed := strings.TrimSpace(line)
		if len(heredocs) > 0 {
			last := &out[len(out)-1]
			last.Args += "\n" + line
			if trimmed == heredocs[0] {
				heredocs = heredocs[1:]
			}
			continue
		}
		if strings.HasPrefix(trimmed, "#") {
			continue
		}
		if buf.Len() == 0 {
			if trimmed == "" {
				continue
			}
			startLn = i + 1
		}
		if cont, ok := strings.CutSuffix(trimmed, `\`); ok {
			buf.WriteString(cont)
			buf.WriteByte(' ')
			continue
		}
		buf.WriteString(trimmed)
		flush()
	}
	flush()
	return out
}

var (
	envReference = regexp.MustCompile(`\$\{?[A-Za-z_][A-Za-z0-9_]*`)
	bindPort     = regexp.MustCompile(`(?:0\.0\.0\.0|localhost|127\.0\.0\.1|\[::\]|^):(\d{2,5})\b|--port[= ](\d{2,5})\b`)
	exposePort   = regexp.MustCompile(`^(\d+)(?:/(?:tcp|udp))?$`)
)

var shells = []string{"sh", "bash", "ash", "dash", "zsh"}

// invokesShell reports whether an exec-form vector runs its command through
// a shell (sh -c ...), which expands variables at container start.
func invokesShell(argv []string) bool {
	if len(argv) < 2 {
		return false
	}
	if !slices.Contains(shells, path.Base(argv[0])) {
		return false
	}
	for _, a := range argv[1:] {
		if a == "-c" || (strings.HasPrefix(a, "-") && !strings.HasPrefix(a, "--") && strings.Contains(a, "c")) {
			return true
		}
	}
	return false
}

// installStep maps dependency installers to the manifest they read.
type installStep struct {
	pattern   *regexp.Regexp
	manifests []string
}

var installSteps = []installStep{
	{regexp.MustCompile(`pip3? install\b.*(?:-r|--requirement)[ =](\S+)`), nil},
	{regexp.MustCompile(`\bgo mod download\b`), []string{"go.mod"}},
	{regexp.MustCompile(`\bnpm (?:ci|install)\b`), []string{"package.json"}},
	{regexp.MustCompile(`\bpoetry install\b`), []string{"pyproject.toml"}},
	{regexp.MustCompile(`\bbundle install\b`), []string{"Gemfile"}},
}

// CheckDockerfile statically checks a Dockerfile against the container
// entrypoint contract: the start command must receive a runtime PORT, which
// exec form only achieves through an explicit shell.
func CheckDockerfile(content string) Result {
	var res Result
	if strings.TrimSpace(content) == "" {
		res.add(0, SeverityError, "empty", "dockerfile content is empty")
		return res
	}

	instructions := ParseInstructions(content)
	var (
		hasFrom  bool
		commands []Instruction
		exposed  []string
		copied   []string
		// shellEntry is set while the current stage's ENTRYPOINT is an
		// exec-form shell wrapper that expands the CMD it is given. Stages
		// built FROM an earlier stage inherit it.
		shellEntry bool
		stage      string
		stages     = map[string]bool{}
	)
	for _, in := range instructions {
		if !validInstructions[in.Command] {
			res.add(in.Line, SeverityError, "invalid-instruction", "invalid or unrecognized instruction: %s", in.Command)
			continue
		}
		switch in.Command {
		case "FROM":
			hasFrom = true
			var base string
			base, stage = stageNames(in)
			shellEntry = stages[base]
			if stage != "" {
				stages[stage] = shellEntry
			}
			if in.Args == "" {
				res.add(in.Line, SeverityError, "from-missing-image", "FROM instruction requires a base image")
			}
		case "EXPOSE":
			for _, p := range strings.Fields(in.Args) {
				m := exposePort.FindStringSubmatch(p)
				if m == nil {
					res.add(in.Line, SeverityError, "expose-invalid-port", "invalid port format: %s (expected: number[/protocol])", p)
					continue
				}
				exposed = append(exposed, m[1])
			}
		case "COPY", "ADD":
			_, rest := in.Flags()
			if len(rest) < 2 {
				res.add(in.Line, SeverityError, "copy-missing-parts", "%s instruction requires source and destination", in.Command)
				continue
			}
			copied = append(copied, rest[:len(rest)-1]...)
		case "RUN":
			checkInstallStep(&res, in, copied)
		case "ENTRYPOINT":
			commands = append(commands, in)
			argv, exec := in.Exec()
			shellEntry = exec && invokesShell(argv)
			if stage != "" {
				stages[stage] = shellEntry
			}
			checkCommand(&res, in)
		case "CMD":
			commands = append(commands, in)
			if !shellEntry {
				checkCommand(&res, in)
			}
		}
	}

	if !hasFrom {
		res.add(0, SeverityError, "missing-from", "dockerfile must start with a FROM instruction")
	}
	if len(commands) == 0 {
		res.add(0, SeverityError, "missing-cmd", "no CMD or ENTRYPOINT: the container has no start command")
	}
	checkPorts(&res, commands, exposed)
	return res
}

// stageNames returns the lower-cased base image and stage name of a FROM
// instruction ("FROM --platform=x base AS name").
func stageNames(in Instruction) (base, name string) {
	_, rest := in.Flags()
	if len(rest) > 0 {
		base = strings.ToLower(rest[0])
	}
	if len(rest) >= 3 && strings.EqualFold(rest[1], "AS") {
		name = strings.ToLower(rest[2])
	}
	return base, name
}

func checkCommand(res *Result, in Instruction) {
	argv, exec := in.Exec()
	if !exec || invokesShell(argv) {
		return
	}
	for _, a := range argv {
		if ref := envReference.FindString(a); ref != "" {
			res.add(in.Line, SeverityError, "exec-form-variable",
				"%s exec form passes %q to the process unexpanded; wrap it in [\"sh\", \"-c\", ...] or read the variable in the process", in.Command, ref)
			return
		}
	}
}

func checkPorts(res *Result, commands []Instruction, exposed []string) {
	if len(exposed) == 0 {
		return
	}
	for _, in := range commands {
		for _, m := range bindPort.FindAllStringSubmatch(in.Args, -1) {
			port := m[1]
			if port == "" {
				port = m[2]
			}
			if !slices.Contains(exposed, port) {
				res.add(in.Line, SeverityWarning, "port-mismatch",
					"%s binds hard-coded port %s but EXPOSE declares %s", in.Command, port, strings.Join(exposed, ", "))
			}
		}
	}
}

func checkInstallStep(res *Result, in Instruction, copied []string) {
	for _, step := range installSteps {
		m := step.pattern.FindStringSubmatch(in.Args)
		if m == nil {
			continue
		}
		manifests := step.manifests
		if len(m) > 1 && m[1] != "" {
			manifests = []string{m[1]}
		}
		for _, manifest := range manifests {
			if !manifestCopied(manifest, copied) {
				res.add(in.Line, SeverityWarning, "manifest-not-copied",
					"dependency install runs before %s is copied into the image", manifest)
			}
		}
	}
}

func manifestCopied(manifest string, copied []string) bool {
	base := path.Base(manifest)
	for _, src := range copied {
		src = strings.TrimPrefix(src, "./")
		if src == "." || src == base || path.Base(src) == base {
			return true
		}
		if ok, _ := path.Match(src, base); ok {
			return true
		}
	}
	return false
}
