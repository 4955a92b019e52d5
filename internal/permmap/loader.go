package permmap

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Parse reads a permission map in the classic text format:
//
//	class file 3
//	read    10   r
//	write   10   w
//	getattr  7   r
//
// Each class line declares how many permission lines follow. Permission
// lines carry a weight (0-10) and a direction letter: r, w, b (both) or
// n (none). Lines starting with # and blank lines are skipped.
func Parse(src string) (*Map, error) {
	m := New()

	var (
		class     string
		declared  int
		remaining int
	)
	closeClass := func() error {
		if remaining != 0 {
			return fmt.Errorf("class %q declares %d permissions, found %d", class, declared, declared-remaining)
		}
		return nil
	}

	scanner := bufio.NewScanner(strings.NewReader(src))
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Fields(text)

		if fields[0] == "class" {
			if err := closeClass(); err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			if len(fields) != 3 {
				return nil, fmt.Errorf("line %d: class lines take a name and a permission count", line)
			}
			count, err := strconv.Atoi(fields[2])
			if err != nil || count < 0 {
				return nil, fmt.Errorf("line %d: invalid permission count %q", line, fields[2])
			}
			if _, dup := m.classes[fields[1]]; dup {
				return nil, fmt.Errorf("line %d: class %q mapped twice", line, fields[1])
			}
			class = fields[1]
			declared = count
			remaining = count
			m.classes[class] = map[string]*Mapping{}
			continue
		}

		if class == "" {
			return nil, fmt.Errorf("line %d: permission line before any class line", line)
		}
		if len(fields) != 3 {
			return nil, fmt.Errorf("line %d: permission lines take a name, a weight and a direction", line)
		}
		if remaining == 0 {
			return nil, fmt.Errorf("line %d: class %q declares %d permissions, found more", line, class, declared)
		}
		weight, err := strconv.Atoi(fields[1])
		if err != nil || weight < 0 || weight > 10 {
			return nil, fmt.Errorf("line %d: invalid weight %q, must be 0-10", line, fields[1])
		}
		dir, err := parseDirection(fields[2])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if err := m.add(class, fields[0], Mapping{Weight: weight, Direction: dir}); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		remaining--
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if err := closeClass(); err != nil {
		return nil, err
	}
	return m, nil
}

func parseDirection(s string) (Direction, error) {
	switch s {
	case "r":
		return DirectionRead, nil
	case "w":
		return DirectionWrite, nil
	case "b":
		return DirectionBoth, nil
	case "n":
		return DirectionUnknown, nil
	default:
		return DirectionUnknown, fmt.Errorf("invalid direction %q, must be r, w, b or n", s)
	}
}

// LoadFile reads and parses a permission map file.
func LoadFile(path string) (*Map, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading permission map: %w", err)
	}
	m, err := Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("parsing permission map %s: %w", path, err)
	}
	return m, nil
}
