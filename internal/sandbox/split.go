package sandbox

import (
	"fmt"
	"regexp"
	"strings"
)

// rawStatement is one logical statement of a snippet, stripped of comments.
type rawStatement struct {
	text string
	line int
}

// splitStatements breaks a snippet on newlines and semicolons that appear
// outside string literals and brackets.
func splitStatements(src string) ([]rawStatement, error) {
	var (
		out       []rawStatement
		buf       strings.Builder
		quote     rune
		escaped   bool
		depth     int
		line      = 1
		startLine = 1
	)
	flush := func() {
		if text := strings.TrimSpace(buf.String()); text != "" {
			out = append(out, rawStatement{text: text, line: startLine})
		}
		buf.Reset()
		startLine = line
	}

	runes := []rune(src)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if quote != 0 {
			buf.WriteRune(r)
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == quote:
				quote = 0
			case r == '\n':
				return nil, &SyntaxError{Msg: "unterminated string literal", Line: line, Offset: 1}
			}
			continue
		}
		switch r {
		case '\'', '"', '`':
			quote = r
			buf.WriteRune(r)
		case '#':
			for i+1 < len(runes) && runes[i+1] != '\n' {
				i++
			}
		case '(', '[', '{':
			depth++
			buf.WriteRune(r)
		case ')', ']', '}':
			depth--
			if depth < 0 {
				return nil, &SyntaxError{Msg: fmt.Sprintf("unmatched '%c'", r), Line: line, Offset: 1}
			}
			buf.WriteRune(r)
		case '\n':
			line++
			if depth == 0 {
				flush()
				continue
			}
			buf.WriteRune(' ')
		case ';':
			if depth == 0 {
				flush()
				continue
			}
			buf.WriteRune(r)
		default:
			buf.WriteRune(r)
		}
	}
	if quote != 0 {
		return nil, &SyntaxError{Msg: "unterminated string literal", Line: line, Offset: 1}
	}
	if depth != 0 {
		return nil, &SyntaxError{Msg: "unexpected EOF while parsing", Line: line, Offset: 1}
	}
	flush()
	return out, nil
}

type stmtKind int

const (
	stmtExpr stmtKind = iota
	stmtAssign
	stmtPass
	stmtIf
	stmtImport
)

// statement is a parsed, not yet compiled, snippet statement.
type statement struct {
	kind   stmtKind
	line   int
	target string
	op     string
	expr   string
	body   *statement
}

var identifierRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// blockKeywords start statements the snippet grammar has no form for.
var blockKeywords = map[string]bool{
	"def": true, "class": true, "while": true, "for": true, "with": true,
	"try": true, "except": true, "finally": true, "lambda": true, "return": true,
	"yield": true, "raise": true, "global": true, "nonlocal": true, "del": true,
	"assert": true, "async": true, "await": true, "elif": true, "else": true,
	"break": true, "continue": true,
}

func parseStatement(raw rawStatement) (statement, error) {
	text := raw.text
	word := leadingWord(text)
	rest := strings.TrimSpace(text[len(word):])

	switch {
	case word == "import":
		return statement{kind: stmtImport, line: raw.line, expr: "import"}, nil
	case word == "from" && rest != "":
		return statement{kind: stmtImport, line: raw.line, expr: "from ... import"}, nil
	case word == "pass" && rest == "":
		return statement{kind: stmtPass, line: raw.line}, nil
	case blockKeywords[word]:
		return statement{}, &SyntaxError{Msg: fmt.Sprintf("unsupported statement '%s'", word), Line: raw.line, Offset: 1}
	case word == "if":
		colon := indexTopLevel(rest, ':')
		if colon < 0 {
			return statement{}, &SyntaxError{Msg: "expected ':'", Line: raw.line, Offset: len(text)}
		}
		cond := strings.TrimSpace(rest[:colon])
		bodyText := strings.TrimSpace(rest[colon+1:])
		if cond == "" || bodyText == "" {
			return statement{}, &SyntaxError{Msg: "invalid syntax", Line: raw.line, Offset: 1}
		}
		body, err := parseStatement(rawStatement{text: bodyText, line: raw.line})
		if err != nil {
			return statement{}, err
		}
		return statement{kind: stmtIf, line: raw.line, expr: cond, body: &body}, nil
	}

	if idx, op, ok := findAssignment(text); ok {
		target := strings.TrimSpace(text[:idx-len(op)])
		value := strings.TrimSpace(text[idx+1:])
		if !identifierRe.MatchString(target) {
			return statement{}, &SyntaxError{Msg: fmt.Sprintf("cannot assign to expression '%s'", target), Line: raw.line, Offset: 1}
		}
		if IsReserved(target) {
			return statement{}, &SyntaxError{Msg: fmt.Sprintf("cannot assign to %s", target), Line: raw.line, Offset: 1}
		}
		if value == "" {
			return statement{}, &SyntaxError{Msg: "invalid syntax", Line: raw.line, Offset: idx + 1}
		}
		return statement{kind: stmtAssign, line: raw.line, target: target, op: op, expr: value}, nil
	}
	return statement{kind: stmtExpr, line: raw.line, expr: text}, nil
}

func leadingWord(s string) string {
	end := 0
	for end < len(s) && (s[end] == '_' || isAlnum(s[end])) {
		end++
	}
	return s[:end]
}

func isAlnum(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

// indexTopLevel returns the index of the first c outside quotes and brackets.
func indexTopLevel(s string, c byte) int {
	var quote byte
	depth := 0
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if quote != 0 {
			if ch == '\\' {
				i++
			} else if ch == quote {
				quote = 0
			}
			continue
		}
		switch ch {
		case '\'', '"', '`':
			quote = ch
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case c:
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// findAssignment locates a top-level assignment operator. It returns the index
// of the '=' and the arithmetic operator of an augmented assignment ("" for a
// plain one).
func findAssignment(s string) (int, string, bool) {
	offset := 0
	for {
		i := indexTopLevel(s[offset:], '=')
		if i < 0 {
			return 0, "", false
		}
		i += offset
		if i+1 < len(s) && s[i+1] == '=' {
			offset = i + 2
			continue
		}
		if i == 0 {
			return 0, "", false
		}
		switch s[i-1] {
		case '=', '!', '<', '>':
			offset = i + 1
			continue
		case '*':
			if i >= 2 && s[i-2] == '*' {
				return i, "**", true
			}
			return i, "*", true
		case '/':
			if i >= 2 && s[i-2] == '/' {
				return i, "//", true
			}
			return i, "/", true
		case '+', '-', '%':
			return i, string(s[i-1]), true
		}
		return i, "", true
	}
}
