package command

import "fmt"

// Kind classifies a lexed token.
type Kind int

const (
	// KindWord is an unquoted bareword.
	KindWord Kind = iota
	// KindQuoted is the content between matched double quotes.
	KindQuoted
	// KindShortOption is "-x" or a run "-xvf"; expansion to individual
	// flags happens in the parser.
	KindShortOption
	// KindLongOption is "--name".
	KindLongOption
	// KindAssign is the "=" between an option and its value.
	KindAssign
	// KindEOF terminates every token stream.
	KindEOF
)

func (k Kind) String() string {
	switch k {
	case KindWord:
		return "WORD"
	case KindQuoted:
		return "QUOTED"
	case KindShortOption:
		return "SHORT_OPTION"
	case KindLongOption:
		return "LONG_OPTION"
	case KindAssign:
		return "ASSIGN"
	case KindEOF:
		return "EOF"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Token is one lexed unit. Pos is the rune offset in the input.
type Token struct {
	Kind  Kind
	Value string
	Pos   int
}
