package fetch

import (
	"fmt"
	"strings"
	"unicode"
)

// evalCondition evaluates a !#if expression against the condition set.
// Grammar: or := and ("||" and)*, and := unary ("&&" unary)*,
// unary := "!" unary | "(" or ")" | identifier. Unknown identifiers are false.
func evalCondition(expr string, conds map[string]bool) (bool, error) {
	tokens, err := tokenizeCondition(expr)
	if err != nil {
		return false, err
	}
	if len(tokens) == 0 {
		return false, fmt.Errorf("empty condition")
	}
	p := &condParser{tokens: tokens, conds: conds}
	v, err := p.parseOr()
	if err != nil {
		return false, err
	}
	if p.pos != len(p.tokens) {
		return false, fmt.Errorf("unexpected token %q", p.tokens[p.pos])
	}
	return v, nil
}

func tokenizeCondition(expr string) ([]string, error) {
	var tokens []string
	runes := []rune(expr)
	for i := 0; i < len(runes); {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '(' || r == ')' || r == '!':
			tokens = append(tokens, string(r))
			i++
		case r == '&' || r == '|':
			if i+1 >= len(runes) || runes[i+1] != r {
				return nil, fmt.Errorf("invalid operator %q in condition", string(r))
			}
			tokens = append(tokens, strings.Repeat(string(r), 2))
			i += 2
		case isIdentRune(r):
			start := i
			for i < len(runes) && isIdentRune(runes[i]) {
				i++
			}
			tokens = append(tokens, string(runes[start:i]))
		default:
			return nil, fmt.Errorf("invalid character %q in condition", string(r))
		}
	}
	return tokens, nil
}

func isIdentRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '.' || r == '-'
}

type condParser struct {
	tokens []string
	pos    int
	conds  map[string]bool
}

func (p *condParser) peek() string {
	if p.pos < len(p.tokens) {
		return p.tokens[p.pos]
	}
	return ""
}

func (p *condParser) parseOr() (bool, error) {
	v, err := p.parseAnd()
	if err != nil {
		return false, err
	}
	for p.peek() == "||" {
		p.pos++
		rhs, err := p.parseAnd()
		if err != nil {
			return false, err
		}
		v = v || rhs
	}
	return v, nil
}

func (p *condParser) parseAnd() (bool, error) {
	v, err := p.parseUnary()
	if err != nil {
		return false, err
	}
	for p.peek() == "&&" {
		p.pos++
		rhs, err := p.parseUnary()
		if err != nil {
			return false, err
		}
		v = v && rhs
	}
	return v, nil
}

func (p *condParser) parseUnary() (bool, error) {
	switch tok := p.peek(); tok {
	case "":
		return false, fmt.Errorf("condition ends unexpectedly")
	case "!":
		p.pos++
		v, err := p.parseUnary()
		if err != nil {
			return false, err
		}
		return !v, nil
	case "(":
		p.pos++
		v, err := p.parseOr()
		if err != nil {
			return false, err
		}
		if p.peek() != ")" {
			return false, fmt.Errorf("missing closing parenthesis")
		}
		p.pos++
		return v, nil
	case ")", "&&", "||":
		return false, fmt.Errorf("unexpected token %q", tok)
	default:
		p.pos++
		return p.conds[tok], nil
	}
}
