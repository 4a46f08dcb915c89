package session

import "strings"

// smalltalk is the allow-list of bare greetings and pleasantries that
// never trigger a manual lookup.
var smalltalk = map[string]struct{}{
	"hi":             {},
	"hello":          {},
	"hey":            {},
	"good morning":   {},
	"good afternoon": {},
	"good evening":   {},
	"thanks":         {},
	"thank you":      {},
	"ok":             {},
	"okay":           {},
	"bye":            {},
	"goodbye":        {},
	"see you":        {},
}

// isSmalltalk reports whether the whole utterance is a bare greeting.
// Anything longer than a pleasantry goes through retrieval.
func isSmalltalk(utterance string) bool {
	norm := strings.ToLower(strings.TrimSpace(utterance))
	norm = strings.TrimRight(norm, ".!?, ")
	_, ok := smalltalk[norm]
	return ok
}
