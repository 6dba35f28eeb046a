package model

import "strings"

// Tier is a ranked permission label. The zero value is TierNone.
type Tier string

const (
	TierNone     Tier = ""
	TierReseller Tier = "RESELLER"
	TierADP      Tier = "ADP"
	TierOwn      Tier = "OWN"
	TierPT       Tier = "PT"
	TierTK       Tier = "TK"
	TierCEO      Tier = "CEO"
)

// Tiers lists every ranked tier, lowest first. Rank is the index in this slice.
var Tiers = []Tier{TierReseller, TierADP, TierOwn, TierPT, TierTK, TierCEO}

// ParseTier accepts a tier name in any letter case. An empty string parses as TierNone.
func ParseTier(s string) (Tier, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return TierNone, true
	}
	for _, t := range Tiers {
		if string(t) == s {
			return t, true
		}
	}
	return TierNone, false
}

// Rank returns the position of t in Tiers, or -1 for TierNone and unknown labels.
func (t Tier) Rank() int {
	for i, v := range Tiers {
		if v == t {
			return i
		}
	}
	return -1
}

// Valid reports whether t is one of the six ranked tiers.
func (t Tier) Valid() bool {
	return t.Rank() >= 0
}

// AtLeast reports whether t ranks at or above min.
func (t Tier) AtLeast(min Tier) bool {
	r := t.Rank()
	return r >= 0 && r >= min.Rank()
}

// Label is the display name used by the dashboard; users without a tier are members.
func (t Tier) Label() string {
	if t == TierNone {
		return "Member"
	}
	return string(t)
}
