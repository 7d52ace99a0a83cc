// Package swhid derives swh:1:dir identifiers for extracted source trees.
package swhid

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/open-edge-platform/ossa-collector/internal/utils/logger"
	"github.com/open-edge-platform/ossa-collector/internal/utils/shell"
)

// DirPrefix marks a directory identifier in resolver output.
const DirPrefix = "swh:1:dir:"

// Resolver derives a directory identifier for an unpacked tree. It fails soft:
// ok is false whenever no identifier could be produced. Resolvers never
// modify the tree.
type Resolver interface {
	Identify(dir string) (id string, ok bool)
}

// New returns the resolver for mode: "native", "command" or "none".
func New(mode, command string) (Resolver, error) {
	switch mode {
	case "", "native":
		return NativeResolver{}, nil
	case "command":
		if strings.TrimSpace(command) == "" {
			return nil, fmt.Errorf("identifier command is empty")
		}
		return &CommandResolver{Command: command}, nil
	case "none":
		return NoneResolver{}, nil
	default:
		return nil, fmt.Errorf("unknown identifier mode %q", mode)
	}
}

// CommandResolver runs an external identification command, e.g. "swh identify".
type CommandResolver struct {
	Command string
}

func (r *CommandResolver) Identify(dir string) (string, bool) {
	log := logger.Logger()

	out, err := shell.ExecCmdSilent(r.Command+" "+shell.Quote(dir), false, nil)
	if err != nil {
		log.Warnf("directory identification of %s failed: %v", dir, err)
		return "", false
	}

	id, ok := ParseOutput(out)
	if !ok {
		log.Warnf("no %s line in identifier output for %s", DirPrefix, dir)
	}
	return id, ok
}

// ParseOutput returns the identifier token of the first output line that
// starts with DirPrefix.
func ParseOutput(out string) (string, bool) {
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, DirPrefix) {
			continue
		}
		fields := strings.Fields(line)
		return fields[0], true
	}
	return "", false
}

// NoneResolver never produces an identifier.
type NoneResolver struct{}

func (NoneResolver) Identify(string) (string, bool) { return "", false }
