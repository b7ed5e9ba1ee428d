// Package router assigns an inbound message to a model tier. Routing is a
// pure function of a config snapshot and the message signals; the same input
// always produces the same decision.
package router

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Model tiers.
const (
	TierFast  = "fast"
	TierSmart = "smart"
)

// ModelRef identifies a concrete model behind a tier.
type ModelRef struct {
	Provider string
	ModelID  string
}

// Config is the routing policy snapshot.
type Config struct {
	Enabled         bool // off forces everything to smart
	Fast            ModelRef
	Smart           ModelRef
	SimpleKeywords  []string // greetings, address lookups, short acks
	ComplexKeywords []string // negotiation, legal, tax, objection handling
	FinancialTerms  []string
	MaxSimpleLength int // rune count ceiling for the fast tier
	MaxHistoryLen   int // conversation turns before escalating to smart
}

// Input carries the lightweight signals the router reads.
type Input struct {
	Content       string
	HistoryLength int
}

// Decision is the routing outcome.
type Decision struct {
	Tier     string `json:"tier"`
	Provider string `json:"provider"`
	ModelID  string `json:"model_id"`
}

// Route classifies a message into a tier. Ambiguity always resolves to
// smart: the policy only sends clearly simple traffic to the fast tier.
func Route(cfg Config, in Input) Decision {
	if !cfg.Enabled {
		return cfg.decision(TierSmart)
	}

	content := strings.ToLower(strings.TrimSpace(in.Content))

	for _, kw := range cfg.ComplexKeywords {
		if kw != "" && strings.Contains(content, strings.ToLower(kw)) {
			return cfg.decision(TierSmart)
		}
	}

	if containsDigit(content) && containsAny(content, cfg.FinancialTerms) {
		return cfg.decision(TierSmart)
	}

	maxHistory := cfg.MaxHistoryLen
	if maxHistory == 0 {
		maxHistory = 6
	}
	if in.HistoryLength > maxHistory {
		return cfg.decision(TierSmart)
	}

	if utf8.RuneCountInString(content) <= cfg.MaxSimpleLength && containsAny(content, cfg.SimpleKeywords) {
		return cfg.decision(TierFast)
	}

	return cfg.decision(TierSmart)
}

func (cfg Config) decision(tier string) Decision {
	ref := cfg.Smart
	if tier == TierFast {
		ref = cfg.Fast
	}
	return Decision{Tier: tier, Provider: ref.Provider, ModelID: ref.ModelID}
}

func containsAny(content string, keywords []string) bool {
	for _, kw := range keywords {
		if kw != "" && strings.Contains(content, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

func containsDigit(s string) bool {
	for _, r := range s {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
