package program

import (
	"fmt"
	"strings"
	"unicode"
)

type kind uint8

const (
	tkEOF kind = iota
	tkIdent
	tkVar
	tkNumber
	tkString
	tkPunct
)

type token struct {
	kind kind
	text string
	pos  int
}

func (t token) String() string {
	if t.kind == tkEOF {
		return "end of input"
	}
	return fmt.Sprintf("%q at %d", t.text, t.pos)
}

// longest operators first
var puncts = []string{
	"=..", "**",
	"==", "!=", "<=", ">=", "&&", "||", "<<",
	"+=", "-=", "*=", "/=", "%=", "^=",
	"++", "--", "-+", "!!",
	"(", ")", "[", "]", "{", "}", ",", "|",
	"+", "-", "*", "/", "%", "^", "<", ">", "=", "!", "~", "?", "$", "@", ":",
}

func lex(src string) ([]token, error) {
	var out []token
	rs := []rune(src)
	for i := 0; i < len(rs); {
		r := rs[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case unicode.IsLower(r):
			j := i + 1
			for j < len(rs) {
				if isWord(rs[j]) {
					j++
					continue
				}
				// path separator inside an identifier, e.g. "math/min"
				if rs[j] == '/' && j+1 < len(rs) && unicode.IsLower(rs[j+1]) {
					j++
					continue
				}
				break
			}
			out = append(out, token{kind: tkIdent, text: string(rs[i:j]), pos: i})
			i = j
		case unicode.IsUpper(r) || r == '_':
			j := i + 1
			for j < len(rs) && isWord(rs[j]) {
				j++
			}
			out = append(out, token{kind: tkVar, text: string(rs[i:j]), pos: i})
			i = j
		case unicode.IsDigit(r):
			j := i + 1
			for j < len(rs) && (unicode.IsDigit(rs[j]) || rs[j] == '.' && j+1 < len(rs) && unicode.IsDigit(rs[j+1])) {
				j++
			}
			out = append(out, token{kind: tkNumber, text: string(rs[i:j]), pos: i})
			i = j
		case r == '"':
			j := i + 1
			for j < len(rs) && rs[j] != r {
				if rs[j] == '\\' {
					j++
				}
				j++
			}
			if j >= len(rs) {
				return nil, fmt.Errorf("%w: unterminated string at %d", ErrSyntax, i)
			}
			out = append(out, token{kind: tkString, text: string(rs[i : j+1]), pos: i})
			i = j + 1
		default:
			rest := string(rs[i:])
			matched := false
			for _, p := range puncts {
				if strings.HasPrefix(rest, p) {
					out = append(out, token{kind: tkPunct, text: p, pos: i})
					i += len([]rune(p))
					matched = true
					break
				}
			}
			if !matched {
				return nil, fmt.Errorf("%w: unexpected %q at %d", ErrSyntax, r, i)
			}
		}
	}
	return append(out, token{kind: tkEOF, pos: len(rs)}), nil
}

func isWord(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}
