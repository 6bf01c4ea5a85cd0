package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// AnnualAllowlist names customers whose one-off payments buy a year of membership.
// Entries match case-insensitively as a substring of a customer's email or name.
type AnnualAllowlist struct {
	Entries []string `yaml:"annual_members"`
}

// LoadAnnualAllowlist reads the YAML allow-list file. An empty path yields an empty list.
func LoadAnnualAllowlist(path string) (*AnnualAllowlist, error) {
	if path == "" {
		return &AnnualAllowlist{}, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read allow-list %s: %w", path, err)
	}

	list := &AnnualAllowlist{}
	if err := yaml.Unmarshal(raw, list); err != nil {
		return nil, fmt.Errorf("parse allow-list %s: %w", path, err)
	}
	return list.normalized(), nil
}

func (a *AnnualAllowlist) normalized() *AnnualAllowlist {
	out := make([]string, 0, len(a.Entries))
	for _, e := range a.Entries {
		e = strings.ToLower(strings.TrimSpace(e))
		if e != "" {
			out = append(out, e)
		}
	}
	return &AnnualAllowlist{Entries: out}
}

// Matches reports whether email or name contains any allow-list entry.
func (a *AnnualAllowlist) Matches(email, name string) bool {
	if a == nil {
		return false
	}
	email = strings.ToLower(email)
	name = strings.ToLower(name)
	for _, e := range a.Entries {
		e = strings.ToLower(e)
		if e == "" {
			continue
		}
		if strings.Contains(email, e) || strings.Contains(name, e) {
			return true
		}
	}
	return false
}
