// Package protocol parses the line-oriented graph script used to import
// nodes and edges:
//
//	# a comment
//	NODE 1 :Site :Building name="North wing" floor=2
//	EDGE 1 2 "has child" weight=1
//
// Names and values may be double-quoted; inside quotes \" and \\ escape.
package protocol

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	KindNode = "NODE"
	KindEdge = "EDGE"
)

var (
	ErrEmptyLine   = errors.New("empty line")
	ErrSyntax      = errors.New("syntax error")
	ErrUnknownKind = errors.New("unknown statement")
)

// Statement is one parsed script line.
type Statement struct {
	Kind       string // NODE or EDGE
	ID         uint64 // NODE only
	Labels     []string
	Source     uint64 // EDGE only
	Target     uint64 // EDGE only
	Relation   string // EDGE only
	Properties map[string]string
}

// Parse parses one line. Blank lines and comments return ErrEmptyLine.
func Parse(raw string) (*Statement, error) {
	parts, err := tokenize(raw)
	if err != nil {
		return nil, err
	}
	if len(parts) == 0 {
		return nil, ErrEmptyLine
	}

	st := &Statement{Kind: strings.ToUpper(parts[0].text)}
	rest := parts[1:]

	switch st.Kind {
	case KindNode:
		if len(rest) < 1 {
			return nil, fmt.Errorf("%w: NODE needs an id", ErrSyntax)
		}
		if st.ID, err = parseID(rest[0].text); err != nil {
			return nil, err
		}
		rest = rest[1:]
		for len(rest) > 0 && !rest[0].quoted && strings.HasPrefix(rest[0].text, ":") {
			label := rest[0].text[1:]
			if label == "" {
				return nil, fmt.Errorf("%w: empty label", ErrSyntax)
			}
			st.Labels = append(st.Labels, label)
			rest = rest[1:]
		}
	case KindEdge:
		if len(rest) < 3 {
			return nil, fmt.Errorf("%w: EDGE needs source, target and relation", ErrSyntax)
		}
		if st.Source, err = parseID(rest[0].text); err != nil {
			return nil, err
		}
		if st.Target, err = parseID(rest[1].text); err != nil {
			return nil, err
		}
		st.Relation = rest[2].text
		if st.Relation == "" {
			return nil, fmt.Errorf("%w: empty relation", ErrSyntax)
		}
		rest = rest[3:]
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, parts[0].text)
	}

	for _, p := range rest {
		if p.key == "" {
			return nil, fmt.Errorf("%w: expected key=value, got %q", ErrSyntax, p.text)
		}
		if st.Properties == nil {
			st.Properties = make(map[string]string)
		}
		st.Properties[p.key] = p.text
	}
	return st, nil
}

func parseID(s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: invalid id %q", ErrSyntax, s)
	}
	return id, nil
}

// token is a bare or quoted word. For key=value words key is set and text
// holds the value.
type token struct {
	key    string
	text   string
	quoted bool
}

func tokenize(line string) ([]token, error) {
	var (
		out []token
		i   int
	)
	for {
		for i < len(line) && isSpace(line[i]) {
			i++
		}
		if i >= len(line) || line[i] == '#' {
			return out, nil
		}

		var tok token
		word, quoted, next, err := readWord(line, i, true)
		if err != nil {
			return nil, err
		}
		i = next
		tok.text, tok.quoted = word, quoted

		if !quoted && i < len(line) && line[i] == '=' {
			tok.key = word
			if tok.key == "" {
				return nil, fmt.Errorf("%w: empty key", ErrSyntax)
			}
			tok.text, tok.quoted, i, err = readWord(line, i+1, false)
			if err != nil {
				return nil, err
			}
		}
		if i < len(line) && !isSpace(line[i]) && line[i] != '#' {
			return nil, fmt.Errorf("%w: unexpected %q at column %d", ErrSyntax, line[i], i+1)
		}
		out = append(out, tok)
	}
}

// readWord reads a quoted string or a bare run of characters starting at i.
// A bare word stops at whitespace and, when stopAtEq is set, at '='.
func readWord(line string, i int, stopAtEq bool) (string, bool, int, error) {
	if i < len(line) && line[i] == '"' {
		var sb strings.Builder
		for j := i + 1; j < len(line); j++ {
			switch c := line[j]; c {
			case '\\':
				if j+1 >= len(line) {
					return "", false, 0, fmt.Errorf("%w: dangling escape", ErrSyntax)
				}
				j++
				sb.WriteByte(line[j])
			case '"':
				return sb.String(), true, j + 1, nil
			default:
				sb.WriteByte(c)
			}
		}
		return "", false, 0, fmt.Errorf("%w: unterminated quote", ErrSyntax)
	}
	j := i
	for j < len(line) && !isSpace(line[j]) && line[j] != '"' && !(stopAtEq && line[j] == '=') {
		j++
	}
	return line[i:j], false, j, nil
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n'
}
