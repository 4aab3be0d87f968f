package audit

import (
	"regexp"
	"slices"
	"strings"
)

// abbreviations expands department and class codes into the words they stand
// for, so "BE_CSE_G1" can be compared with "Computer Science Engineering".
var abbreviations = map[string][]string{
	"CSE":  {"COMPUTER", "SCIENCE", "ENGINEERING"},
	"CS":   {"COMPUTER", "SCIENCE"},
	"IT":   {"INFORMATION", "TECHNOLOGY"},
	"ECE":  {"ELECTRONICS", "COMMUNICATION", "ENGINEERING"},
	"EEE":  {"ELECTRICAL", "ELECTRONICS", "ENGINEERING"},
	"EE":   {"ELECTRICAL", "ENGINEERING"},
	"AI":   {"ARTIFICIAL", "INTELLIGENCE"},
	"ML":   {"MACHINE", "LEARNING"},
	"AIML": {"ARTIFICIAL", "INTELLIGENCE", "MACHINE", "LEARNING"},
	"AIDS": {"ARTIFICIAL", "INTELLIGENCE", "DATA", "SCIENCE"},
	"DS":   {"DATA", "SCIENCE"},
}

// degreeFamily is the token set that satisfies a "BE" degree code on its own.
var degreeFamily = []string{"COMPUTER", "SCIENCE", "ENGINEERING", "INFORMATION", "TECHNOLOGY"}

const (
	degreeToken          = "BE"
	degreeFamilyMinHits  = 2
	departmentMatchRatio = 0.6
)

var nonAlphanumericRegex = regexp.MustCompile(`[^A-Za-z0-9]+`)

// NormalizeIdentifier strips everything but letters and digits and lower-cases
// the rest: "AB-123 " and "ab123" normalize alike.
func NormalizeIdentifier(s string) string {
	return strings.ToLower(nonAlphanumericRegex.ReplaceAllString(s, ""))
}

// NormalizeCode strips everything but letters and digits and upper-cases the
// rest, for department and class codes.
func NormalizeCode(s string) string {
	return strings.ToUpper(nonAlphanumericRegex.ReplaceAllString(s, ""))
}

// CodeContains reports whether one department code covers the other: the
// shorter code's tokens appear as a contiguous run in the longer one's, so
// "CSE" covers "Dept CSE" but "G1" does not cover "G10". Empty codes never
// match.
func CodeContains(a, b string) bool {
	return codeCovers(a, b, 1)
}

// ClassContains is CodeContains for class codes, where the shorter code must
// carry at least two tokens unless both codes are equal: "BE_CSE" covers
// "BE CSE G1" but a bare "BE" covers no class.
func ClassContains(a, b string) bool {
	return codeCovers(a, b, 2)
}

func codeCovers(a, b string, minTokens int) bool {
	na, nb := NormalizeCode(a), NormalizeCode(b)
	if na == "" || nb == "" {
		return false
	}
	if na == nb {
		return true
	}
	ta, tb := codeTokens(a), codeTokens(b)
	if len(ta) > len(tb) {
		ta, tb = tb, ta
	}
	if len(ta) < minTokens || len(ta) == len(tb) {
		return false
	}
	for start := 0; start+len(ta) <= len(tb); start++ {
		if slices.Equal(ta, tb[start:start+len(ta)]) {
			return true
		}
	}
	return false
}

func codeTokens(s string) []string {
	var out []string
	for _, tok := range nonAlphanumericRegex.Split(strings.ToUpper(s), -1) {
		if tok != "" {
			out = append(out, tok)
		}
	}
	return out
}

// Matches compares an extracted value with an expected one. It returns false
// when either side is blank and never panics.
func Matches(kind MatchKind, extracted, expected string) bool {
	if strings.TrimSpace(extracted) == "" || strings.TrimSpace(expected) == "" {
		return false
	}
	switch kind {
	case MatchIdentifier:
		ne, nx := NormalizeIdentifier(extracted), NormalizeIdentifier(expected)
		return ne != "" && ne == nx
	case MatchDepartment:
		return departmentMatches(extracted, expected)
	default:
		return strings.EqualFold(strings.TrimSpace(extracted), strings.TrimSpace(expected))
	}
}

// departmentMatches applies the tiered token heuristic: full containment of the
// expected tokens, at least 60% overlap, or a "BE" degree code satisfied by two
// engineering-family words.
func departmentMatches(extracted, expected string) bool {
	want := departmentTokens(expected)
	got := departmentTokens(extracted)
	if len(want) == 0 || len(got) == 0 {
		return false
	}

	hits := 0
	for tok := range want {
		if _, ok := got[tok]; ok {
			hits++
		}
	}
	if hits == len(want) {
		return true
	}
	if float64(hits)/float64(len(want)) >= departmentMatchRatio {
		return true
	}

	if _, ok := want[degreeToken]; ok {
		familyHits := 0
		for _, tok := range degreeFamily {
			if _, ok := got[tok]; ok {
				familyHits++
			}
		}
		if familyHits >= degreeFamilyMinHits {
			return true
		}
	}
	return false
}

// departmentTokens splits s into upper-case alphanumeric tokens and adds the
// expansion of every known abbreviation. The abbreviation itself is kept.
func departmentTokens(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, tok := range nonAlphanumericRegex.Split(strings.ToUpper(s), -1) {
		if tok == "" {
			continue
		}
		out[tok] = struct{}{}
		for _, word := range abbreviations[tok] {
			out[word] = struct{}{}
		}
	}
	return out
}
