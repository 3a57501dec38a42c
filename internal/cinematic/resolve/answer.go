package resolve

import (
	"strconv"
	"strings"

	"github.com/bdobrica/Cinematic/internal/cinematic/media"
)

// Answer is the parsed meaning of a reply to a pending question.
type Answer struct {
	// Selected is the index into the pending candidate list. Valid only
	// when Kind is AnswerSelected.
	Selected int
	Kind     AnswerKind
}

type AnswerKind int

const (
	// AnswerUnparsed means the reply did not address the question. The
	// caller decides whether it is a fresh request.
	AnswerUnparsed AnswerKind = iota
	// AnswerSelected means the reply picked one candidate.
	AnswerSelected
	// AnswerCancelled means the user declined or abandoned the question.
	AnswerCancelled
)

var confirmWords = map[string]bool{
	"yes": true, "y": true, "yeah": true, "yep": true, "sure": true,
	"ok": true, "okay": true, "confirm": true, "please": true, "do it": true,
}

var cancelWords = map[string]bool{
	"no": true, "n": true, "nope": true, "cancel": true, "stop": true,
	"never mind": true, "nevermind": true, "forget it": true, "abort": true,
}

var ordinalWords = map[string]int{
	"first": 1, "second": 2, "third": 3, "fourth": 4, "fifth": 5,
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
}

// ParseAnswer interprets a reply against the candidates of a pending
// question. Parsing is deterministic: no model call is needed to understand
// "yes", "2" or "the first one".
func ParseAnswer(message string, candidates []media.CandidateRecord) Answer {
	text := strings.ToLower(strings.TrimSpace(message))
	text = strings.Trim(text, ".,!")

	if cancelWords[text] {
		return Answer{Kind: AnswerCancelled}
	}

	// Bare confirmation only makes sense against a single proposed
	// candidate; against a list it stays unparsed and re-asks.
	if confirmWords[text] {
		if len(candidates) == 1 {
			return Answer{Kind: AnswerSelected, Selected: 0}
		}
		return Answer{Kind: AnswerUnparsed}
	}

	if idx, ok := parseOrdinal(text); ok && idx < len(candidates) {
		return Answer{Kind: AnswerSelected, Selected: idx}
	}

	// An exact title names the candidate directly; a year alone picks the
	// matching release.
	norm := normalizeTitle(text)
	for i, c := range candidates {
		if norm == normalizeTitle(c.Title) || norm == normalizeTitle(c.Label()) {
			return Answer{Kind: AnswerSelected, Selected: i}
		}
	}
	if year, err := strconv.Atoi(text); err == nil && year >= 1880 && year <= 2100 {
		match := -1
		for i, c := range candidates {
			if c.Year == year {
				if match >= 0 {
					match = -1
					break
				}
				match = i
			}
		}
		if match >= 0 {
			return Answer{Kind: AnswerSelected, Selected: match}
		}
	}

	return Answer{Kind: AnswerUnparsed}
}

// parseOrdinal handles "2", "#2", "option 2", "the second one" and friends,
// returning a zero-based index.
func parseOrdinal(text string) (int, bool) {
	for _, noise := range []string{"the ", "option ", "number ", "#"} {
		text = strings.TrimPrefix(text, noise)
	}
	text = strings.TrimSuffix(text, " one")
	text = strings.TrimSpace(text)

	if n, err := strconv.Atoi(text); err == nil && n >= 1 && n <= 20 {
		return n - 1, true
	}
	if n, ok := ordinalWords[text]; ok {
		return n - 1, true
	}
	return 0, false
}
