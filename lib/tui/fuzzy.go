// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"slices"
	"unicode"

	"github.com/junegunn/fzf/src/algo"
	"github.com/junegunn/fzf/src/util"
)

// FuzzyResult is the outcome of matching a pattern against one
// candidate string. Score is fzf's match score (higher is better,
// zero means no match) and Positions holds the rune indices of the
// matched characters in ascending order, for highlight rendering.
type FuzzyResult struct {
	Score     int
	Positions []int
}

// NewSlab allocates a reusable scratch arena for FuzzyMatch. Reusing
// one slab across the candidate list avoids reallocating the scoring
// matrix per call. A nil slab is accepted and simply allocates.
func NewSlab() *util.Slab {
	return util.MakeSlab(100*1024, 2048*100)
}

// FuzzyMatch scores pattern against text using fzf's V2 algorithm.
// Matching is case-insensitive: the pattern is lowercased here and
// the algorithm case-folds the text. An empty pattern and a failed
// match both return the zero result.
func FuzzyMatch(text string, pattern []rune, slab *util.Slab) FuzzyResult {
	if len(pattern) == 0 {
		return FuzzyResult{}
	}
	lowered := make([]rune, len(pattern))
	for i, r := range pattern {
		lowered[i] = unicode.ToLower(r)
	}
	chars := util.ToChars([]byte(text))
	result, positions := algo.FuzzyMatchV2(false, true, true, &chars, lowered, true, slab)
	if result.Start < 0 {
		return FuzzyResult{}
	}
	match := FuzzyResult{Score: result.Score}
	if positions != nil {
		match.Positions = append(match.Positions, *positions...)
		slices.Sort(match.Positions)
	}
	return match
}
