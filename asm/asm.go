// Package asm assembles a small RV32I subset into flat binary images.
//
// It exists to build the user-mode test programs: two passes, absolute
// origin, labels, and the handful of pseudo-instructions the programs need.
package asm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/shlex"
)

type stmt struct {
	line  int
	addr  uint32
	mn    string
	args  []string
	ascii string // .ascii payload
}

// Assemble translates source into a binary image based at origin.
//
// Lines hold one statement each: `label:`, an instruction, or a directive
// (.word, .byte, .ascii, .zero, .align). `#` starts a comment.
func Assemble(src string, origin uint32) ([]byte, error) {
	labels := make(map[string]uint32)
	var stmts []stmt

	pc := origin
	for ln, raw := range strings.Split(src, "\n") {
		// .ascii bypasses the shell lexer: its payload keeps escapes and
		// comment characters, so it is parsed as a Go quoted string.
		if label, payload, isAscii, aerr := asciiLine(raw); isAscii {
			if aerr != nil {
				return nil, fmt.Errorf("asm: line %d: %v", ln+1, aerr)
			}
			if label != "" {
				if _, dup := labels[label]; dup {
					return nil, fmt.Errorf("asm: line %d: duplicate label %q", ln+1, label)
				}
				labels[label] = pc
			}
			stmts = append(stmts, stmt{line: ln + 1, addr: pc, mn: ".ascii", ascii: payload})
			pc += uint32(len(payload))
			continue
		}

		tokens, err := shlex.Split(raw)
		if err != nil {
			return nil, fmt.Errorf("asm: line %d: %v", ln+1, err)
		}
		if len(tokens) == 0 {
			continue
		}

		if strings.HasSuffix(tokens[0], ":") {
			name := strings.TrimSuffix(tokens[0], ":")
			if name == "" {
				return nil, fmt.Errorf("asm: line %d: empty label", ln+1)
			}
			if _, dup := labels[name]; dup {
				return nil, fmt.Errorf("asm: line %d: duplicate label %q", ln+1, name)
			}
			labels[name] = pc
			tokens = tokens[1:]
			if len(tokens) == 0 {
				continue
			}
		}

		s := stmt{line: ln + 1, mn: strings.ToLower(tokens[0])}
		for _, t := range tokens[1:] {
			t = strings.TrimSuffix(t, ",")
			if t != "" {
				s.args = append(s.args, t)
			}
		}

		if !strings.HasPrefix(s.mn, ".") {
			// Instructions are word aligned; data directives may leave
			// the location counter odd.
			pc = align4(pc)
		}

		s.addr = pc
		size, err := sizeOf(&s)
		if err != nil {
			return nil, err
		}
		pc += size
		stmts = append(stmts, s)
	}

	out := make([]byte, 0, pc-origin)
	emit := func(at uint32, b ...byte) {
		for uint32(len(out)) < at-origin {
			out = append(out, 0)
		}
		out = append(out, b...)
	}

	for i := range stmts {
		s := &stmts[i]
		b, err := encode(s, labels)
		if err != nil {
			return nil, err
		}
		emit(s.addr, b...)
	}
	return out, nil
}

func align4(pc uint32) uint32 { return (pc + 3) &^ 3 }

func sizeOf(s *stmt) (uint32, error) {
	switch s.mn {
	case ".word":
		return 4 * uint32(len(s.args)), nil
	case ".byte":
		return uint32(len(s.args)), nil
	case ".zero":
		n, err := parseImm(s.args[0])
		if err != nil || n < 0 {
			return 0, fmt.Errorf("asm: line %d: bad .zero size", s.line)
		}
		return uint32(n), nil
	case ".align":
		return align4(s.addr) - s.addr, nil
	case "li", "la":
		return 8, nil
	default:
		return 4, nil
	}
}

// asciiLine recognizes `[label:] .ascii "..."` with an optional trailing
// comment. It reports isAscii for any line carrying the directive, with err
// set when the payload is not a well-formed quoted string.
func asciiLine(raw string) (label, payload string, isAscii bool, err error) {
	t := strings.TrimSpace(raw)
	if i := strings.IndexByte(t, ':'); i > 0 && !strings.ContainsAny(t[:i], " \t\"#") {
		label = t[:i]
		t = strings.TrimSpace(t[i+1:])
	}
	if !strings.HasPrefix(t, ".ascii") {
		return "", "", false, nil
	}
	rest := strings.TrimSpace(strings.TrimPrefix(t, ".ascii"))
	q, err := strconv.QuotedPrefix(rest)
	if err != nil {
		return "", "", true, fmt.Errorf(".ascii wants a quoted string")
	}
	tail := strings.TrimSpace(rest[len(q):])
	if tail != "" && !strings.HasPrefix(tail, "#") {
		return "", "", true, fmt.Errorf(".ascii: trailing %q", tail)
	}
	payload, err = strconv.Unquote(q)
	if err != nil {
		return "", "", true, fmt.Errorf(".ascii: %v", err)
	}
	return label, payload, true, nil
}

func parseImm(s string) (int64, error) {
	return strconv.ParseInt(s, 0, 64)
}
