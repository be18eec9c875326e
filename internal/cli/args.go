// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// args.go - Flag and positional splitting for subcommand arguments.

package cli

import (
	"fmt"
	"strconv"
	"strings"
)

// ArgParser splits subcommand arguments into flags and positionals.
// "--name value", "--name=value" and "-n value" set string flags. Names
// given to NewArgParser are switches and never consume the next word.
// Everything after "--" is positional.
type ArgParser struct {
	values     map[string]string
	switches   map[string]bool
	positional []string
}

// NewArgParser parses raw with switchNames treated as boolean flags.
//
//	p := NewArgParser([]string{"set", "ui.theme", "dark", "--json"}, "json")
//	p.Subcommand()     // "set"
//	p.Positional(1)    // "ui.theme"
//	p.BoolFlag("json") // true
func NewArgParser(raw []string, switchNames ...string) *ArgParser {
	p := &ArgParser{
		values:   make(map[string]string),
		switches: make(map[string]bool),
	}
	isSwitch := func(name string) bool {
		for _, s := range switchNames {
			if s == name {
				return true
			}
		}
		return false
	}

	for i := 0; i < len(raw); i++ {
		arg := raw[i]
		switch {
		case arg == "--":
			p.positional = append(p.positional, raw[i+1:]...)
			return p
		case !looksLikeFlag(arg):
			p.positional = append(p.positional, arg)
			continue
		}

		name := strings.TrimLeft(arg, "-")
		if n, v, ok := strings.Cut(name, "="); ok {
			if b, err := strconv.ParseBool(v); err == nil && (isSwitch(n) || v == "true" || v == "false") {
				p.switches[n] = b
			} else {
				p.values[n] = v
			}
			continue
		}
		if !isSwitch(name) && i+1 < len(raw) && !strings.HasPrefix(raw[i+1], "-") {
			i++
			p.values[name] = raw[i]
			continue
		}
		p.switches[name] = true
	}
	return p
}

// looksLikeFlag rejects "-" and negative numbers, which are values.
func looksLikeFlag(arg string) bool {
	if len(arg) < 2 || arg[0] != '-' {
		return false
	}
	_, err := strconv.ParseFloat(arg, 64)
	return err != nil
}

// Subcommand returns the first positional argument.
func (p *ArgParser) Subcommand() string {
	return p.Positional(0)
}

// Flag returns a string flag, or "" when absent.
func (p *ArgParser) Flag(name string) string {
	return p.values[strings.TrimLeft(name, "-")]
}

// IntFlag parses a numeric flag. ok is false when the flag is absent or
// not an integer.
func (p *ArgParser) IntFlag(name string) (n int, ok bool) {
	v := p.Flag(name)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	return n, err == nil
}

// BoolFlag reports whether a switch was set.
func (p *ArgParser) BoolFlag(name string) bool {
	return p.switches[strings.TrimLeft(name, "-")]
}

// HasFlag reports whether name appeared as a flag or a switch.
func (p *ArgParser) HasFlag(name string) bool {
	name = strings.TrimLeft(name, "-")
	_, isValue := p.values[name]
	_, isSwitch := p.switches[name]
	return isValue || isSwitch
}

// Positional returns the positional argument at index, or "".
func (p *ArgParser) Positional(index int) string {
	if index < 0 || index >= len(p.positional) {
		return ""
	}
	return p.positional[index]
}

// JoinPositionalArgs joins the positionals from startIndex with spaces, so
// unquoted multi-word values still arrive whole.
func JoinPositionalArgs(p *ArgParser, startIndex int) string {
	if startIndex < 0 || startIndex >= len(p.positional) {
		return ""
	}
	return strings.Join(p.positional[startIndex:], " ")
}

// ParseBoolString accepts true/false, yes/no, y/n, on/off and 1/0 in any
// case.
func ParseBoolString(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "y", "1", "on":
		return true, nil
	case "false", "no", "n", "0", "off":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean value: %s", s)
}
