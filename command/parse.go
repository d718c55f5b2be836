package command

// Element is one positional item of a parsed command, in original
// order. Position counts elements only, not options.
type Element struct {
	Content  string
	Position int
	Quoted   bool
}

// Parsed partitions a token stream into boolean options, named
// parameters and positional elements.
type Parsed struct {
	Options map[string]bool
	Named   map[string]string
	Elems   []Element
}

// Parse walks the tokens, pairing options with "=" values. A short-
// option run with no value expands letter by letter; "--opt=" with no
// value degrades to the boolean flag.
func Parse(tokens []Token) *Parsed {
	p := &Parsed{
		Options: make(map[string]bool),
		Named:   make(map[string]string),
	}

	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		switch tok.Kind {
		case KindWord, KindQuoted:
			p.Elems = append(p.Elems, Element{
				Content:  tok.Value,
				Position: len(p.Elems),
				Quoted:   tok.Kind == KindQuoted,
			})
		case KindShortOption, KindLongOption:
			if value, skip, ok := assignedValue(tokens, i); ok {
				p.Named[tok.Value] = value
				i += skip
				continue
			}
			if tok.Kind == KindShortOption {
				for _, r := range tok.Value {
					p.Options[string(r)] = true
				}
			} else {
				p.Options[tok.Value] = true
			}
		case KindAssign:
			// Stray "=" outside an option pairing; ignored.
		case KindEOF:
			return p
		}
	}
	return p
}

// assignedValue inspects the tokens after an option for "=value". It
// returns the value, how many tokens to skip, and whether a value was
// present. The lexer only emits ASSIGN when a glued value follows, so
// ASSIGN is always trailed by a WORD or QUOTED token.
func assignedValue(tokens []Token, i int) (string, int, bool) {
	if i+2 >= len(tokens) || tokens[i+1].Kind != KindAssign {
		return "", 0, false
	}
	if tokens[i+2].Kind == KindWord || tokens[i+2].Kind == KindQuoted {
		return tokens[i+2].Value, 2, true
	}
	return "", 0, false
}
