// Package dn parses the free-text distinguished name syntax accepted on the
// command line, e.g. `C=US, ST = "CA Minor", L=SF, CN=example`.
package dn

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/wolfeidau/certforge/internal/pki"
)

var (
	// ErrEmpty is returned for input without any attribute.
	ErrEmpty = errors.New("distinguished name is empty")

	// ErrSyntax is returned for malformed input.
	ErrSyntax = errors.New("invalid distinguished name")
)

// Parse splits s into ordered key/value pairs. Whitespace around keys, '='
// and ',' is ignored. Values may be double quoted, in which case they can
// contain commas and the escapes \" and \\.
func Parse(s string) ([]pki.Pair, error) {
	p := &parser{input: []rune(s)}

	p.skipSpace()
	if p.eof() {
		return nil, ErrEmpty
	}

	var pairs []pki.Pair
	for {
		pair, err := p.pair()
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, pair)

		p.skipSpace()
		if p.eof() {
			return pairs, nil
		}
		if p.peek() != ',' {
			return nil, p.errorf("expected ','")
		}
		p.pos++
	}
}

// Format renders pairs in the form accepted by Parse.
func Format(pairs []pki.Pair) string {
	var sb strings.Builder
	for i, pair := range pairs {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(pair.Key)
		sb.WriteString(" = ")
		sb.WriteString(quote(pair.Value))
	}
	return sb.String()
}

func quote(v string) string {
	if v != "" && !strings.ContainsAny(v, `,"\`) && strings.TrimSpace(v) == v {
		return v
	}
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return `"` + r.Replace(v) + `"`
}

type parser struct {
	input []rune
	pos   int
}

func (p *parser) eof() bool {
	return p.pos >= len(p.input)
}

func (p *parser) peek() rune {
	return p.input[p.pos]
}

func (p *parser) skipSpace() {
	for !p.eof() && unicode.IsSpace(p.peek()) {
		p.pos++
	}
}

func (p *parser) errorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s at offset %d", ErrSyntax, fmt.Sprintf(format, args...), p.pos)
}

func (p *parser) pair() (pki.Pair, error) {
	p.skipSpace()

	start := p.pos
	for !p.eof() && (unicode.IsLetter(p.peek()) || unicode.IsDigit(p.peek())) {
		p.pos++
	}
	if start == p.pos {
		return pki.Pair{}, p.errorf("expected attribute key")
	}
	key := string(p.input[start:p.pos])

	p.skipSpace()
	if p.eof() || p.peek() != '=' {
		return pki.Pair{}, p.errorf("expected '=' after %q", key)
	}
	p.pos++
	p.skipSpace()

	value, err := p.value()
	if err != nil {
		return pki.Pair{}, err
	}
	return pki.Pair{Key: key, Value: value}, nil
}

func (p *parser) value() (string, error) {
	if !p.eof() && p.peek() == '"' {
		return p.quoted()
	}

	start := p.pos
	for !p.eof() && p.peek() != ',' {
		if p.peek() == '"' {
			return "", p.errorf("unexpected '\"' in unquoted value")
		}
		p.pos++
	}
	value := strings.TrimRightFunc(string(p.input[start:p.pos]), unicode.IsSpace)
	if value == "" {
		return "", p.errorf("expected value")
	}
	return value, nil
}

func (p *parser) quoted() (string, error) {
	p.pos++ // opening quote

	var sb strings.Builder
	for !p.eof() {
		r := p.peek()
		p.pos++
		switch r {
		case '"':
			return sb.String(), nil
		case '\\':
			if p.eof() {
				return "", p.errorf("unterminated escape")
			}
			next := p.peek()
			if next != '"' && next != '\\' {
				return "", p.errorf("invalid escape '\\%c'", next)
			}
			sb.WriteRune(next)
			p.pos++
		default:
			sb.WriteRune(r)
		}
	}
	return "", p.errorf("unterminated quoted value")
}
