package commands

import "strings"

// cancelTokens abort an active session whatever step it is on.
var cancelTokens = map[string]bool{
	"exit":  true,
	"abort": true,
}

// Tokenize splits a line into whitespace separated tokens.
func Tokenize(line string) []string {
	return strings.Fields(line)
}

// IsCancel reports whether token is a reserved session cancel word.
func IsCancel(token string) bool {
	return cancelTokens[strings.ToLower(token)]
}
