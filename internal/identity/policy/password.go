// Package policy holds the password acceptance rules applied before a
// credential is hashed.
package policy

import (
	"bufio"
	_ "embed"
	"fmt"
	"strings"
	"unicode"
)

const (
	DefaultMinLength  = 12
	DefaultMaxLength  = 128
	DefaultMinClasses = 2
)

//go:embed blacklist.txt
var builtinBlacklist string

// Password rejects short, overly long, low-diversity and commonly used
// passwords. The zero value is not usable; use NewPassword.
type Password struct {
	MinLength  int
	MaxLength  int
	MinClasses int

	blacklist map[string]struct{}
}

// Config is the YAML shape of a password policy.
type Config struct {
	MinLength  int      `yaml:"minLength"`
	MaxLength  int      `yaml:"maxLength"`
	MinClasses int      `yaml:"minClasses"`
	Blacklist  []string `yaml:"blacklist"`
}

// NewPassword builds a policy from cfg, falling back to defaults for unset
// limits. Extra blacklist entries are added to the built-in list.
func NewPassword(cfg Config) *Password {
	p := &Password{
		MinLength:  cfg.MinLength,
		MaxLength:  cfg.MaxLength,
		MinClasses: cfg.MinClasses,
		blacklist:  make(map[string]struct{}),
	}
	if p.MinLength <= 0 {
		p.MinLength = DefaultMinLength
	}
	if p.MaxLength <= 0 {
		p.MaxLength = DefaultMaxLength
	}
	if p.MinClasses <= 0 {
		p.MinClasses = DefaultMinClasses
	}

	sc := bufio.NewScanner(strings.NewReader(builtinBlacklist))
	for sc.Scan() {
		p.addBlacklisted(sc.Text())
	}
	for _, w := range cfg.Blacklist {
		p.addBlacklisted(w)
	}
	return p
}

func (p *Password) addBlacklisted(w string) {
	if strings.HasPrefix(strings.TrimSpace(w), "#") {
		return
	}
	if w = fold(w); w != "" {
		p.blacklist[w] = struct{}{}
	}
}

// fold lowercases and drops whitespace so "Pass Word" matches "password".
func fold(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), "")
}

// Check returns every rule raw violates, or nil.
func (p *Password) Check(raw string) []string {
	var violations []string

	n := len([]rune(raw))
	switch {
	case n < p.MinLength:
		violations = append(violations, fmt.Sprintf("too short (min %d)", p.MinLength))
	case n > p.MaxLength:
		violations = append(violations, fmt.Sprintf("too long (max %d)", p.MaxLength))
	}

	if c := classes(raw); c < p.MinClasses {
		violations = append(violations,
			fmt.Sprintf("must mix at least %d of lowercase, uppercase, digits, symbols", p.MinClasses))
	}

	if p.isBlacklisted(raw) {
		violations = append(violations, "too common")
	}
	return violations
}

func (p *Password) isBlacklisted(raw string) bool {
	folded := fold(raw)
	if _, ok := p.blacklist[folded]; ok {
		return true
	}
	// "Password2024!" style variants of a listed word.
	stripped := strings.TrimRightFunc(folded, func(r rune) bool {
		return unicode.IsDigit(r) || unicode.IsPunct(r) || unicode.IsSymbol(r)
	})
	_, ok := p.blacklist[stripped]
	return ok
}

func classes(raw string) int {
	var lower, upper, digit, other bool
	for _, r := range raw {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		default:
			other = true
		}
	}
	n := 0
	for _, b := range []bool{lower, upper, digit, other} {
		if b {
			n++
		}
	}
	return n
}
