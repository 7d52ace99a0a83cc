// Package license normalizes raw license declarations and ranks the
// obligations they carry.
package license

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"github.com/open-edge-platform/ossa-collector/internal/utils/security"
	"gopkg.in/yaml.v3"
)

//go:embed licenses.yaml
var defaultTable []byte

// Severity ranks license obligations. Higher values are stronger.
type Severity int

const (
	Informational Severity = iota
	Medium
	High
)

func (s Severity) String() string {
	switch s {
	case High:
		return "High"
	case Medium:
		return "Medium"
	default:
		return "Informational"
	}
}

// tierPrefixes maps raw token prefixes to the tier they trigger.
var tierPrefixes = []struct {
	prefix   string
	severity Severity
}{
	{"AGPL", High},
	{"GPL", High},
	{"LGPL", Medium},
	{"MPL", Medium},
	{"EPL", Medium},
	{"CDDL", Medium},
}

var reasons = map[Severity]string{
	High:          "Copyleft license detected: distributing derived works requires releasing their source under the same license.",
	Medium:        "Weak copyleft license detected: modifications to the licensed files must be released under the same license.",
	Informational: "No copyleft obligations detected in the declared licenses.",
}

// Table maps raw tokens to normalized identifiers.
type Table map[string]string

type tableFile struct {
	Mappings map[string]string `yaml:"mappings"`
}

func parseTable(data []byte) (Table, error) {
	var tf tableFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("parsing license table: %w", err)
	}
	t := make(Table, len(tf.Mappings))
	for raw, normalized := range tf.Mappings {
		raw, normalized = strings.TrimSpace(raw), strings.TrimSpace(normalized)
		if raw == "" || normalized == "" {
			return nil, fmt.Errorf("license table entry %q: empty key or value", raw)
		}
		t[raw] = normalized
	}
	return t, nil
}

// DefaultTable returns the built-in mapping table.
func DefaultTable() Table {
	t, err := parseTable(defaultTable)
	if err != nil {
		panic(err) // embedded data is covered by tests
	}
	return t
}

// LoadTable returns the built-in table extended (and overridden) by the
// mappings in path. An empty path yields the built-in table.
func LoadTable(path string) (Table, error) {
	t := DefaultTable()
	if path == "" {
		return t, nil
	}
	data, err := security.SafeReadFile(path, security.RejectSymlinks)
	if err != nil {
		return nil, fmt.Errorf("reading license map %s: %w", path, err)
	}
	extra, err := parseTable(data)
	if err != nil {
		return nil, fmt.Errorf("license map %s: %w", path, err)
	}
	for raw, normalized := range extra {
		t[raw] = normalized
	}
	return t, nil
}

// Result is the outcome of classifying one package's declarations.
type Result struct {
	Licenses []string // sorted, duplicate-free
	Severity Severity
	Reason   string
}

// Classifier applies a Table to license declarations.
type Classifier struct {
	table Table
}

// NewClassifier returns a Classifier over table; nil selects the built-in table.
func NewClassifier(table Table) *Classifier {
	if table == nil {
		table = DefaultTable()
	}
	return &Classifier{table: table}
}

// Normalize maps one atomic token; unknown tokens pass through unchanged.
func (c *Classifier) Normalize(token string) string {
	if normalized, ok := c.table[token]; ok {
		return normalized
	}
	return token
}

// Classify normalizes every declaration and ranks the strongest obligation
// found among the raw tokens. Empty input yields an empty set at Informational.
func (c *Classifier) Classify(declarations []string) Result {
	tokens := Tokens(declarations)

	set := make(map[string]struct{}, len(tokens))
	severity := Informational
	for _, tok := range tokens {
		set[c.Normalize(tok)] = struct{}{}
		if s := SeverityOf(tok); s > severity {
			severity = s
		}
	}

	licenses := make([]string, 0, len(set))
	for l := range set {
		licenses = append(licenses, l)
	}
	sort.Strings(licenses)

	return Result{Licenses: licenses, Severity: severity, Reason: reasons[severity]}
}

var conjunctions = strings.NewReplacer(" and ", ",", " AND ", ",")

// Tokens splits compound declarations into trimmed atomic tokens.
func Tokens(declarations []string) []string {
	var tokens []string
	for _, decl := range declarations {
		for _, part := range strings.Split(conjunctions.Replace(decl), ",") {
			if tok := strings.TrimSpace(part); tok != "" {
				tokens = append(tokens, tok)
			}
		}
	}
	return tokens
}

// SeverityOf ranks one raw token by the tier prefixes it carries.
func SeverityOf(token string) Severity {
	upper := strings.ToUpper(strings.TrimSpace(token))
	severity := Informational
	for _, tp := range tierPrefixes {
		if strings.HasPrefix(upper, tp.prefix) && tp.severity > severity {
			severity = tp.severity
		}
	}
	return severity
}
