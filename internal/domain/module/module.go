package module

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/assessdex/internal/domain"
)

// Type is the assessment domain category a document belongs to.
type Type string

// Recognized module types.
const (
	Business        Type = "business"
	Architecture    Type = "architecture"
	Infrastructure  Type = "infrastructure"
	Data            Type = "data"
	DevOps          Type = "devops"
	Security        Type = "security"
	Cloud           Type = "cloud"
	Recommendations Type = "recommendations"
)

var all = []Type{
	Business, Architecture, Infrastructure, Data,
	DevOps, Security, Cloud, Recommendations,
}

// All returns the recognized module types in canonical order.
func All() []Type {
	out := make([]Type, len(all))
	copy(out, all)
	return out
}

// IsValid checks if the type is one of the recognized values.
func (t Type) IsValid() bool {
	for _, v := range all {
		if t == v {
			return true
		}
	}
	return false
}

func (t Type) String() string { return string(t) }

// Parse normalizes case and surrounding whitespace, then validates.
func Parse(s string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidModuleType, s)
	}
	return t, nil
}

// ParseList parses every entry and drops duplicates, keeping first-seen order.
func ParseList(values []string) ([]Type, error) {
	if len(values) == 0 {
		return nil, nil
	}
	seen := make(map[Type]struct{}, len(values))
	out := make([]Type, 0, len(values))
	for _, v := range values {
		t, err := Parse(v)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out, nil
}
