package command

import (
	"strings"
	"unicode"

	"github.com/nyabot/nyabot/errors"
)

// Tokenize splits chat text into tokens. Whitespace separates; quoted
// strings may contain whitespace and honor \" and \\ escapes; "-x" and
// "--name" are options, with "=" lexed as its own token so the parser
// can pair options with values.
func Tokenize(input string) ([]Token, error) {
	lx := &lexer{input: []rune(input)}
	return lx.run()
}

type lexer struct {
	input []rune
	pos   int
}

func (lx *lexer) run() ([]Token, error) {
	var tokens []Token
	for {
		lx.skipSpace()
		if lx.eof() {
			break
		}
		start := lx.pos
		switch {
		case lx.peek() == '"':
			value, err := lx.quoted()
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, Token{Kind: KindQuoted, Value: value, Pos: start})
		case lx.peek() == '-' && lx.peekAt(1) == '-':
			lx.pos += 2
			name := lx.optionName()
			if name == "" {
				// A bare "--" is ordinary text.
				tokens = append(tokens, Token{Kind: KindWord, Value: "--", Pos: start})
				continue
			}
			tokens = append(tokens, Token{Kind: KindLongOption, Value: name, Pos: start})
			tokens = lx.lexAssign(tokens)
		case lx.peek() == '-' && isOptionRune(lx.peekAt(1)):
			lx.pos++
			name := lx.optionName()
			tokens = append(tokens, Token{Kind: KindShortOption, Value: name, Pos: start})
			tokens = lx.lexAssign(tokens)
		default:
			tokens = append(tokens, Token{Kind: KindWord, Value: lx.word(), Pos: start})
		}
	}
	tokens = append(tokens, Token{Kind: KindEOF, Pos: lx.pos})
	return tokens, nil
}

// lexAssign handles the "=value" tail of an option token. The value may
// be a quoted string or a bareword glued to the "=".
func (lx *lexer) lexAssign(tokens []Token) []Token {
	if lx.eof() || lx.peek() != '=' {
		return tokens
	}
	assignPos := lx.pos
	lx.pos++
	if lx.eof() || unicode.IsSpace(lx.peek()) {
		// "--port=" with nothing attached degrades the option to a
		// boolean flag; no ASSIGN is emitted.
		return tokens
	}
	tokens = append(tokens, Token{Kind: KindAssign, Value: "=", Pos: assignPos})
	start := lx.pos
	if lx.peek() == '"' {
		value, err := lx.quoted()
		if err != nil {
			// Unterminated quote after "=": take the rest literally.
			tokens = append(tokens, Token{Kind: KindWord, Value: lx.word(), Pos: start})
			return tokens
		}
		tokens = append(tokens, Token{Kind: KindQuoted, Value: value, Pos: start})
		return tokens
	}
	tokens = append(tokens, Token{Kind: KindWord, Value: lx.word(), Pos: start})
	return tokens
}

func (lx *lexer) quoted() (string, error) {
	lx.pos++ // opening quote
	var sb strings.Builder
	for !lx.eof() {
		r := lx.peek()
		lx.pos++
		switch r {
		case '\\':
			if lx.eof() {
				return "", errors.New("dangling escape at end of input")
			}
			next := lx.peek()
			lx.pos++
			switch next {
			case '"', '\\':
				sb.WriteRune(next)
			default:
				sb.WriteRune('\\')
				sb.WriteRune(next)
			}
		case '"':
			return sb.String(), nil
		default:
			sb.WriteRune(r)
		}
	}
	return "", errors.New("unterminated quoted string")
}

// optionName reads letters, digits, hyphens and underscores up to
// whitespace or "=".
func (lx *lexer) optionName() string {
	start := lx.pos
	for !lx.eof() && isOptionRune(lx.peek()) {
		lx.pos++
	}
	return string(lx.input[start:lx.pos])
}

// word reads until whitespace.
func (lx *lexer) word() string {
	start := lx.pos
	for !lx.eof() && !unicode.IsSpace(lx.peek()) {
		lx.pos++
	}
	return string(lx.input[start:lx.pos])
}

func (lx *lexer) skipSpace() {
	for !lx.eof() && unicode.IsSpace(lx.peek()) {
		lx.pos++
	}
}

func (lx *lexer) eof() bool { return lx.pos >= len(lx.input) }

func (lx *lexer) peek() rune { return lx.input[lx.pos] }

func (lx *lexer) peekAt(offset int) rune {
	if lx.pos+offset >= len(lx.input) {
		return 0
	}
	return lx.input[lx.pos+offset]
}

func isOptionRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_'
}
