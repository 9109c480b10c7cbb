// Package ai delegates questions to an external generative-language service
// and reduces its reply to a single word.
package ai

import (
	"context"
	"strings"
	"unicode"

	"github.com/pkg/errors"
)

// Answerer answers a natural-language question with a single word.
type Answerer interface {
	Answer(ctx context.Context, question string) (string, error)
}

// AnswererFunc adapts a function to the Answerer interface.
type AnswererFunc func(ctx context.Context, question string) (string, error)

// Answer implements Answerer.
func (f AnswererFunc) Answer(ctx context.Context, question string) (string, error) {
	return f(ctx, question)
}

// Middleware decorates an Answerer.
type Middleware func(Answerer) Answerer

var (
	// ErrNoAnswer is returned when a reply carries no usable text.
	ErrNoAnswer = errors.New("reply contains no answer")

	// ErrNotConfigured is returned by Unconfigured.
	ErrNotConfigured = errors.New("answering service is not configured")
)

// Unconfigured is the Answerer used when no API key was supplied. It fails
// every call with ErrNotConfigured.
var Unconfigured Answerer = AnswererFunc(func(context.Context, string) (string, error) {
	return "", ErrNotConfigured
})

// Prompt wraps question in the instruction sent upstream.
func Prompt(question string) string {
	return "Answer in ONE WORD only, with no punctuation: " + question
}

// FirstWord returns the first whitespace-delimited token of text with any
// surrounding punctuation removed.
func FirstWord(text string) (string, error) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "", ErrNoAnswer
	}
	word := strings.TrimFunc(fields[0], unicode.IsPunct)
	if word == "" {
		return "", ErrNoAnswer
	}
	return word, nil
}
