package expr

import "strings"

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIllegal
	tokIdent
	tokNumber
	tokString
	tokBool
	tokAnd
	tokOr
	tokNot
	tokEq
	tokNeq
	tokGt
	tokGte
	tokLt
	tokLte
	tokLParen
	tokRParen
	tokMinus
)

var tokenNames = map[tokenKind]string{
	tokEOF:     "end of expression",
	tokIllegal: "illegal token",
	tokIdent:   "identifier",
	tokNumber:  "number",
	tokString:  "string",
	tokBool:    "boolean",
	tokAnd:     "&&",
	tokOr:      "||",
	tokNot:     "!",
	tokEq:      "==",
	tokNeq:     "!=",
	tokGt:      ">",
	tokGte:     ">=",
	tokLt:      "<",
	tokLte:     "<=",
	tokLParen:  "(",
	tokRParen:  ")",
	tokMinus:   "-",
}

func (k tokenKind) String() string {
	if name, ok := tokenNames[k]; ok {
		return name
	}
	return "unknown"
}

type token struct {
	kind tokenKind
	text string
}

// tokenize scans the whole expression up front. Condition expressions are
// short, so there is no benefit to streaming.
func tokenize(input string) []token {
	var toks []token
	pos := 0
	n := len(input)

	peek := func() byte {
		if pos+1 < n {
			return input[pos+1]
		}
		return 0
	}

	for pos < n {
		ch := input[pos]
		switch {
		case ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r':
			pos++
		case ch == '(':
			toks = append(toks, token{tokLParen, "("})
			pos++
		case ch == ')':
			toks = append(toks, token{tokRParen, ")"})
			pos++
		case ch == '-':
			toks = append(toks, token{tokMinus, "-"})
			pos++
		case ch == '!':
			if peek() == '=' {
				toks = append(toks, token{tokNeq, "!="})
				pos += 2
			} else {
				toks = append(toks, token{tokNot, "!"})
				pos++
			}
		case ch == '=':
			if peek() == '=' {
				toks = append(toks, token{tokEq, "=="})
				pos += 2
			} else {
				toks = append(toks, token{tokIllegal, "="})
				pos++
			}
		case ch == '>':
			if peek() == '=' {
				toks = append(toks, token{tokGte, ">="})
				pos += 2
			} else {
				toks = append(toks, token{tokGt, ">"})
				pos++
			}
		case ch == '<':
			if peek() == '=' {
				toks = append(toks, token{tokLte, "<="})
				pos += 2
			} else {
				toks = append(toks, token{tokLt, "<"})
				pos++
			}
		case ch == '&':
			if peek() == '&' {
				toks = append(toks, token{tokAnd, "&&"})
				pos += 2
			} else {
				toks = append(toks, token{tokIllegal, "&"})
				pos++
			}
		case ch == '|':
			if peek() == '|' {
				toks = append(toks, token{tokOr, "||"})
				pos += 2
			} else {
				toks = append(toks, token{tokIllegal, "|"})
				pos++
			}
		case ch == '\'' || ch == '"':
			tok, next := scanString(input, pos)
			toks = append(toks, tok)
			pos = next
		case isDigit(ch):
			start := pos
			sawDot := false
			for pos < n && (isDigit(input[pos]) || (input[pos] == '.' && !sawDot)) {
				if input[pos] == '.' {
					sawDot = true
				}
				pos++
			}
			toks = append(toks, token{tokNumber, input[start:pos]})
		case isIdentStart(ch):
			start := pos
			for pos < n && isIdentPart(input[pos]) {
				pos++
			}
			text := input[start:pos]
			if strings.EqualFold(text, "true") || strings.EqualFold(text, "false") {
				toks = append(toks, token{tokBool, strings.ToLower(text)})
			} else {
				toks = append(toks, token{tokIdent, text})
			}
		default:
			toks = append(toks, token{tokIllegal, string(ch)})
			pos++
		}
	}
	return append(toks, token{kind: tokEOF})
}

func scanString(input string, pos int) (token, int) {
	quote := input[pos]
	pos++
	var b strings.Builder
	for pos < len(input) {
		ch := input[pos]
		if ch == '\\' && pos+1 < len(input) {
			next := input[pos+1]
			switch next {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			default:
				b.WriteByte(next)
			}
			pos += 2
			continue
		}
		if ch == quote {
			return token{tokString, b.String()}, pos + 1
		}
		b.WriteByte(ch)
		pos++
	}
	return token{tokIllegal, "unterminated string"}, pos
}

func isDigit(ch byte) bool { return ch >= '0' && ch <= '9' }

func isIdentStart(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch == '_'
}

func isIdentPart(ch byte) bool {
	return isIdentStart(ch) || isDigit(ch) || ch == '.'
}
