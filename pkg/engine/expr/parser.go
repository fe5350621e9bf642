package expr

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

type node interface {
	eval(ctx context.Context, lookup LookupFunc) (any, error)
}

type parser struct {
	toks []token
	pos  int
}

func parse(input string) (node, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, fmt.Errorf("%w: empty expression", ErrSyntax)
	}
	p := &parser{toks: tokenize(input)}
	root, err := p.parseBinary(0)
	if err != nil {
		return nil, err
	}
	if p.cur().kind != tokEOF {
		return nil, fmt.Errorf("%w: unexpected %s after expression", ErrSyntax, p.cur().kind)
	}
	return root, nil
}

func (p *parser) cur() token { return p.toks[p.pos] }

func (p *parser) advance() token {
	tok := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return tok
}

// Binding strength per operator; higher binds tighter. Comparisons bind
// tighter than &&, which binds tighter than ||.
func precedence(k tokenKind) int {
	switch k {
	case tokOr:
		return 1
	case tokAnd:
		return 2
	case tokEq, tokNeq, tokGt, tokGte, tokLt, tokLte:
		return 3
	default:
		return 0
	}
}

// parseBinary is a precedence climber: it consumes operators binding at
// least as tightly as minPrec, recursing with a higher floor for the right
// operand so same-level operators associate left.
func (p *parser) parseBinary(minPrec int) (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		prec := precedence(p.cur().kind)
		if prec == 0 || prec < minPrec {
			return left, nil
		}
		op := p.advance().kind
		right, err := p.parseBinary(prec + 1)
		if err != nil {
			return nil, err
		}
		left = &binaryNode{op: op, left: left, right: right}
	}
}

func (p *parser) parseUnary() (node, error) {
	switch p.cur().kind {
	case tokNot:
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &notNode{operand: operand}, nil
	case tokMinus:
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &negNode{operand: operand}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (node, error) {
	tok := p.advance()
	switch tok.kind {
	case tokIdent:
		return &identNode{name: tok.text}, nil
	case tokNumber:
		value, err := strconv.ParseFloat(tok.text, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid number %q", ErrSyntax, tok.text)
		}
		return &literalNode{value: value}, nil
	case tokString:
		return &literalNode{value: tok.text}, nil
	case tokBool:
		return &literalNode{value: tok.text == "true"}, nil
	case tokLParen:
		inner, err := p.parseBinary(0)
		if err != nil {
			return nil, err
		}
		if closing := p.advance(); closing.kind != tokRParen {
			return nil, fmt.Errorf("%w: expected ), got %s", ErrSyntax, closing.kind)
		}
		return inner, nil
	case tokIllegal:
		return nil, fmt.Errorf("%w: %s", ErrSyntax, tok.text)
	default:
		return nil, fmt.Errorf("%w: unexpected %s", ErrSyntax, tok.kind)
	}
}
