package template

import (
	"fmt"
	"sort"
	"strings"
)

// itemKind discriminates the three delimiter spans.
type itemKind int

const (
	itemOutput  itemKind = iota // {{ ... }}
	itemStmt                    // {% ... %}
	itemComment                 // {# ... #}
)

// item is one delimiter span: its inner text and the byte offset of the inner
// text start in the original source.
type item struct {
	kind   itemKind
	text   string
	offset int
}

// lineIndex maps byte offsets to 1-based line/column positions.
type lineIndex []int

func newLineIndex(src []byte) lineIndex {
	starts := lineIndex{0}
	for i, b := range src {
		if b == '\n' {
			starts = append(starts, i+1)
		}
	}
	return starts
}

func (ix lineIndex) pos(offset int) Pos {
	line := sort.Search(len(ix), func(i int) bool { return ix[i] > offset })
	return Pos{Line: line, Col: offset - ix[line-1] + 1}
}

// lexError is a tokenization failure at a byte offset.
type lexError struct {
	offset int
	msg    string
}

func (e *lexError) Error() string { return e.msg }

// lexTemplate splits the source into delimiter spans. Plain text between
// delimiters is discarded; only positions matter for checking. Quoted strings
// inside output and statement spans may contain delimiter characters.
func lexTemplate(src []byte) ([]item, *lexError) {
	var items []item
	i := 0
	n := len(src)

	for i < n-1 {
		if src[i] != '{' {
			i++
			continue
		}
		switch src[i+1] {
		case '#':
			end := strings.Index(string(src[i+2:]), "#}")
			if end < 0 {
				return items, &lexError{offset: i, msg: "unclosed comment"}
			}
			inner, off := trimControl(string(src[i+2:i+2+end]), i+2)
			items = append(items, item{kind: itemComment, text: inner, offset: off})
			i += 2 + end + 2
		case '{':
			inner, off, next, err := scanSpan(src, i+2, "}}")
			if err != nil {
				return items, err
			}
			items = append(items, item{kind: itemOutput, text: inner, offset: off})
			i = next
		case '%':
			inner, off, next, err := scanSpan(src, i+2, "%}")
			if err != nil {
				return items, err
			}
			items = append(items, item{kind: itemStmt, text: inner, offset: off})
			i = next
		default:
			i++
		}
	}
	return items, nil
}

// scanSpan finds the closing delimiter starting at src[start], skipping over
// quoted strings. Returns the inner text, its offset and the index after the
// closer.
func scanSpan(src []byte, start int, closer string) (string, int, int, *lexError) {
	i := start
	n := len(src)
	for i < n {
		switch src[i] {
		case '\'', '"':
			q := src[i]
			i++
			for i < n && src[i] != q {
				if src[i] == '\\' {
					i++
				}
				i++
			}
			if i >= n {
				return "", 0, 0, &lexError{offset: start - 2, msg: "unclosed string literal"}
			}
			i++
		case closer[0]:
			if i+1 < n && src[i+1] == closer[1] {
				inner, off := trimControl(string(src[start:i]), start)
				return inner, off, i + 2, nil
			}
			i++
		default:
			i++
		}
	}
	return "", 0, 0, &lexError{offset: start - 2, msg: fmt.Sprintf("unclosed %q delimiter", closer)}
}

// trimControl strips Jinja whitespace-control markers and surrounding space,
// keeping the offset pointed at the first retained byte.
func trimControl(s string, offset int) (string, int) {
	if len(s) > 0 && (s[0] == '-' || s[0] == '+') {
		s, offset = s[1:], offset+1
	}
	if len(s) > 0 && (s[len(s)-1] == '-' || s[len(s)-1] == '+') {
		s = s[:len(s)-1]
	}
	for len(s) > 0 && (s[0] == ' ' || s[0] == '\t' || s[0] == '\n' || s[0] == '\r') {
		s, offset = s[1:], offset+1
	}
	return strings.TrimRight(s, " \t\n\r"), offset
}

// Expression tokens.

type tokKind int

const (
	tokName tokKind = iota
	tokNumber
	tokString
	tokOp
	tokEOF
)

type token struct {
	kind   tokKind
	val    string
	offset int // absolute byte offset in the template source
}

// twoCharOps are matched before single-character operators.
var twoCharOps = []string{"==", "!=", "<=", ">=", "//", "**"}

const singleOps = "+-*/%~|.,:()[]{}<>="

// lexExpr tokenizes the inner text of a span. base is the absolute offset of
// the text so token positions map back into the template file.
func lexExpr(s string, base int) ([]token, *lexError) {
	var toks []token
	i := 0
	n := len(s)

	for i < n {
		c := s[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++

		case isNameStart(c):
			start := i
			for i < n && isNameChar(s[i]) {
				i++
			}
			toks = append(toks, token{kind: tokName, val: s[start:i], offset: base + start})

		case c >= '0' && c <= '9':
			start := i
			for i < n && (s[i] >= '0' && s[i] <= '9' || s[i] == '.' || s[i] == '_') {
				i++
			}
			toks = append(toks, token{kind: tokNumber, val: s[start:i], offset: base + start})

		case c == '\'' || c == '"':
			start := i
			i++
			for i < n && s[i] != c {
				if s[i] == '\\' {
					i++
				}
				i++
			}
			if i >= n {
				return nil, &lexError{offset: base + start, msg: "unclosed string literal"}
			}
			i++
			toks = append(toks, token{kind: tokString, val: s[start:i], offset: base + start})

		default:
			if i+1 < n {
				two := s[i : i+2]
				if matched := matchTwoCharOp(two); matched {
					toks = append(toks, token{kind: tokOp, val: two, offset: base + i})
					i += 2
					continue
				}
			}
			if strings.IndexByte(singleOps, c) >= 0 {
				toks = append(toks, token{kind: tokOp, val: string(c), offset: base + i})
				i++
				continue
			}
			return nil, &lexError{offset: base + i, msg: fmt.Sprintf("unexpected character %q", c)}
		}
	}

	toks = append(toks, token{kind: tokEOF, offset: base + n})
	return toks, nil
}

func matchTwoCharOp(s string) bool {
	for _, op := range twoCharOps {
		if s == op {
			return true
		}
	}
	return false
}

func isNameStart(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func isNameChar(c byte) bool {
	return isNameStart(c) || c >= '0' && c <= '9'
}
