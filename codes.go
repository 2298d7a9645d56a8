package elmo

import (
	"fmt"
	"strings"

	"golang.org/x/exp/slices"
)

// Codes are the user codes accepted by the bridge. An empty list disables
// code checking.
type Codes []string

// ParseCodes parses one code per line, ignoring blank lines.
func ParseCodes(value string) (Codes, error) {
	var codes Codes
	for _, line := range strings.Split(value, "\n") {
		code := strings.TrimSpace(line)
		if code == "" {
			continue
		}
		if slices.Contains(codes, code) {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateCode, code)
		}
		codes = append(codes, code)
	}
	return codes, nil
}

// NewCodes trims the codes and drops the empty ones.
func NewCodes(raw []string) (Codes, error) {
	return ParseCodes(strings.Join(raw, "\n"))
}

func (c Codes) Required() bool {
	return len(c) > 0
}

// Check validates the code given with a command.
func (c Codes) Check(code string) error {
	if !c.Required() {
		return nil
	}
	if code == "" {
		return ErrCodeRequired
	}
	if !slices.Contains(c, code) {
		return ErrInvalidCode
	}
	return nil
}

// Format is "number" when every code is numeric, "text" otherwise and
// empty when no codes are set.
func (c Codes) Format() string {
	if !c.Required() {
		return ""
	}
	for _, code := range c {
		for _, r := range code {
			if r < '0' || r > '9' {
				return "text"
			}
		}
	}
	return "number"
}
