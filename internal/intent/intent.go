// Package intent implements the restricted natural-language command grammar:
// normalization, action classification and the fixed-arity matchers that turn
// a command phrase into a tagged parsed command. Word count alone
// disambiguates the grammar; no tokenizer state machine is involved.
package intent

import (
	"strings"

	xerrors "Intent-Chain/internal/errors"
)

// Action is the canonical intent an action word maps onto.
type Action int

const (
	ActionSend Action = iota
	ActionSwap
)

// String returns the canonical action name.
func (a Action) String() string {
	switch a {
	case ActionSend:
		return "send"
	case ActionSwap:
		return "swap"
	default:
		return "unknown"
	}
}

// actionSynonyms maps each accepted action word onto its canonical intent.
var actionSynonyms = map[string]Action{
	"send":     ActionSend,
	"transfer": ActionSend,
	"pay":      ActionSend,
	"grant":    ActionSend,

	"swap":     ActionSwap,
	"exchange": ActionSwap,
	"stake":    ActionSwap,
	"deposit":  ActionSwap,
	"unstake":  ActionSwap,
	"withdraw": ActionSwap,
}

// Send is a parsed transfer command. Fields hold raw words; resolution to
// accounts and scaled amounts happens downstream.
type Send struct {
	To     string
	Amount string
	Asset  string
}

// Swap is a parsed exchange command. MinOut is the empty string when the
// command did not state a floor, which downstream layers read as zero.
type Swap struct {
	AmountIn string
	MinOut   string
	AssetIn  string
	AssetOut string
}

// Command is the tagged result of parsing one intent phrase. Exactly one of
// Send or Swap is set, according to Action.
type Command struct {
	Action Action
	Send   *Send
	Swap   *Swap
}

// Normalize lowercases the input text and segments it into an ordered
// sequence of whitespace-delimited words.
func Normalize(text string) []string {
	return strings.Fields(strings.ToLower(text))
}

// Classify maps the action word onto a canonical intent. Unrecognized action
// words are a syntax error.
func Classify(word string) (Action, error) {
	action, ok := actionSynonyms[word]
	if !ok {
		return 0, xerrors.New(xerrors.CodeInvalidSyntax, "unrecognized action word",
			xerrors.WithMetadata("action", word))
	}
	return action, nil
}

// MatchSend matches the word sequence of a send command, action word
// included. Two shapes are accepted:
//
//	4 words: [action] [object] [value] [asset]
//	5 words: [action] [value] [asset] [filler] [object]
//
// The filler word ("to"/"for") is skipped positionally, not validated.
func MatchSend(words []string) (*Send, error) {
	switch len(words) {
	case 4:
		return &Send{To: words[1], Amount: words[2], Asset: words[3]}, nil
	case 5:
		return &Send{To: words[4], Amount: words[1], Asset: words[2]}, nil
	default:
		return nil, xerrors.New(xerrors.CodeInvalidSyntax, "send command must have 4 or 5 words")
	}
}

// MatchSwap matches the word sequence of a swap command, action word
// included. Two shapes are accepted:
//
//	5 words: [action] [value] [asset] [filler] [object]
//	6 words: [action] [value] [asset] [filler] [minOutputValue] [object]
//
// The 5-word form leaves the minimum output empty, interpreted as zero.
func MatchSwap(words []string) (*Swap, error) {
	switch len(words) {
	case 5:
		return &Swap{AmountIn: words[1], AssetIn: words[2], MinOut: "", AssetOut: words[4]}, nil
	case 6:
		return &Swap{AmountIn: words[1], AssetIn: words[2], MinOut: words[4], AssetOut: words[5]}, nil
	default:
		return nil, xerrors.New(xerrors.CodeInvalidSyntax, "swap command must have 5 or 6 words")
	}
}

// Parse normalizes the command text, classifies its action and matches the
// grammar for that action.
func Parse(text string) (*Command, error) {
	words := Normalize(text)
	if len(words) == 0 {
		return nil, xerrors.New(xerrors.CodeInvalidSyntax, "empty command")
	}
	action, err := Classify(words[0])
	if err != nil {
		return nil, err
	}
	switch action {
	case ActionSend:
		send, err := MatchSend(words)
		if err != nil {
			return nil, err
		}
		return &Command{Action: ActionSend, Send: send}, nil
	default:
		swap, err := MatchSwap(words)
		if err != nil {
			return nil, err
		}
		return &Command{Action: ActionSwap, Swap: swap}, nil
	}
}
