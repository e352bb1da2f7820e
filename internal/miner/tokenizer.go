package miner

import (
	"regexp"
	"strings"
	"unicode"
)

type TokenKind int

const (
	KindLiteral TokenKind = iota
	KindNum
	KindStr
)

const (
	NumPlaceholder = "<NUM>"
	StrPlaceholder = "<STR>"
)

// Token is one message token together with its classification. Placeholder
// tokens stand in for spans expected to vary between occurrences of the same
// message shape.
type Token struct {
	Value string
	Kind  TokenKind
}

func (t Token) Placeholder() string {
	switch t.Kind {
	case KindNum:
		return NumPlaceholder
	case KindStr:
		return StrPlaceholder
	default:
		return t.Value
	}
}

var (
	numberShape = regexp.MustCompile(`^-?\d+(\.\d+)?$`)
	ipShape     = regexp.MustCompile(`^\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}(:\d+)?$`)
	uuidShape   = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)
	hexShape    = regexp.MustCompile(`^[0-9a-fA-F]{8,}$`)
)

// Tokenizer splits messages on whitespace and punctuation boundaries and
// classifies each token. The high-entropy heuristic is configurable through
// MaxLiteralLength.
type Tokenizer struct {
	maxLiteralLength int
}

func NewTokenizer(maxLiteralLength int) *Tokenizer {
	if maxLiteralLength <= 0 {
		maxLiteralLength = 40
	}
	return &Tokenizer{maxLiteralLength: maxLiteralLength}
}

// Tokenize produces the classified token sequence for a message.
func (t *Tokenizer) Tokenize(message string) []Token {
	fields := strings.Fields(message)
	tokens := make([]Token, 0, len(fields))
	for _, field := range fields {
		core, leading, trailing := splitPunctuation(field)
		if leading != "" {
			tokens = append(tokens, Token{Value: leading, Kind: KindLiteral})
		}
		if core != "" {
			tokens = append(tokens, Token{Value: core, Kind: t.classify(core)})
		}
		if trailing != "" {
			tokens = append(tokens, Token{Value: trailing, Kind: KindLiteral})
		}
	}
	return tokens
}

func (t *Tokenizer) classify(token string) TokenKind {
	if numberShape.MatchString(token) {
		return KindNum
	}
	if strings.HasPrefix(token, `"`) || strings.HasPrefix(token, `'`) {
		return KindStr
	}
	if ipShape.MatchString(token) || uuidShape.MatchString(token) || hexShape.MatchString(token) {
		return KindStr
	}
	if len(token) > t.maxLiteralLength {
		return KindStr
	}
	if mixesDigitsAndLetters(token) {
		return KindStr
	}
	return KindLiteral
}

// splitPunctuation peels leading/trailing punctuation off a whitespace field
// so that "failed:" yields the literal "failed" plus the boundary ":".
// Quote characters stay attached; they mark quoted values.
func splitPunctuation(field string) (core, leading, trailing string) {
	core = field
	for len(core) > 0 {
		r := rune(core[0])
		if r < 128 && isBoundaryPunct(r) {
			leading += string(r)
			core = core[1:]
			continue
		}
		break
	}
	for len(core) > 0 {
		r := rune(core[len(core)-1])
		if r < 128 && isBoundaryPunct(r) {
			trailing = string(r) + trailing
			core = core[:len(core)-1]
			continue
		}
		break
	}
	return core, leading, trailing
}

func isBoundaryPunct(r rune) bool {
	switch r {
	case '"', '\'', '<', '>', '-', '_', '.':
		return false
	}
	return unicode.IsPunct(r) || r == '=' || r == '|'
}

func mixesDigitsAndLetters(token string) bool {
	hasDigit, hasLetter := false, false
	for _, r := range token {
		switch {
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsLetter(r):
			hasLetter = true
		}
	}
	return hasDigit && hasLetter
}
