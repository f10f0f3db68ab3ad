package bot

import (
	"ludo/internal/bot/internal"
	"ludo/internal/domain"
)

// DecisionContext holds the state for the token decision pipeline.
type DecisionContext struct {
	Player     *domain.Player
	Players    []*domain.Player
	Dice       int
	Candidates []internal.Candidate

	Chosen  internal.Candidate
	Decided bool
	Rule    string
}

func (ctx *DecisionContext) choose(rule string, c internal.Candidate) bool {
	ctx.Chosen = c
	ctx.Decided = true
	ctx.Rule = rule
	return true
}

// DecisionRule represents a logic unit that can pick a token or narrow the
// candidates for the rules after it. Apply returns true once a token is chosen.
type DecisionRule interface {
	Name() string
	Apply(ctx *DecisionContext) bool
}

// FinishExactRule takes a token that lands exactly on the finish.
type FinishExactRule struct{}

func (r *FinishExactRule) Name() string { return "FinishExact" }

func (r *FinishExactRule) Apply(ctx *DecisionContext) bool {
	for _, c := range ctx.Candidates {
		if c.To == domain.FinishPosition {
			return ctx.choose(r.Name(), c)
		}
	}
	return false
}

// CaptureRule takes a capturing move. Human victims are preferred over bots,
// then the victim with the most progress.
type CaptureRule struct{}

func (r *CaptureRule) Name() string { return "Capture" }

func (r *CaptureRule) Apply(ctx *DecisionContext) bool {
	found := false
	var best internal.Candidate
	bestHuman, bestProgress := false, -1

	for _, c := range ctx.Candidates {
		for _, v := range internal.Victims(c, ctx.Player, ctx.Players) {
			human := !v.IsBot
			better := !found ||
				(human && !bestHuman) ||
				(human == bestHuman && v.Progress > bestProgress)
			if better {
				found, best = true, c
				bestHuman, bestProgress = human, v.Progress
			}
		}
	}
	if !found {
		return false
	}
	return ctx.choose(r.Name(), best)
}

// EnterBoardRule brings a token out of base on a six.
type EnterBoardRule struct{}

func (r *EnterBoardRule) Name() string { return "EnterBoard" }

func (r *EnterBoardRule) Apply(ctx *DecisionContext) bool {
	if ctx.Dice != domain.EntryRoll {
		return false
	}
	for _, c := range ctx.Candidates {
		if c.From == domain.BasePosition {
			return ctx.choose(r.Name(), c)
		}
	}
	return false
}

// PressureRule lands a token on an unsafe cell just ahead of a human token.
type PressureRule struct{}

func (r *PressureRule) Name() string { return "Pressure" }

func (r *PressureRule) Apply(ctx *DecisionContext) bool {
	for _, c := range ctx.Candidates {
		if internal.Pressures(c, ctx.Player, ctx.Players) {
			return ctx.choose(r.Name(), c)
		}
	}
	return false
}

// RaceRule advances the leading token once the home stretch is in reach.
// Tokens already inside the stretch win over tokens entering it.
type RaceRule struct{}

func (r *RaceRule) Name() string { return "Race" }

func (r *RaceRule) Apply(ctx *DecisionContext) bool {
	if c, ok := mostAdvanced(ctx.Candidates, func(c internal.Candidate) bool {
		return c.From >= domain.HomeStretchStart
	}); ok {
		return ctx.choose(r.Name(), c)
	}
	if c, ok := mostAdvanced(ctx.Candidates, func(c internal.Candidate) bool {
		return c.To >= domain.HomeStretchStart
	}); ok {
		return ctx.choose(r.Name(), c)
	}
	return false
}

// SelfPreservationRule drops candidates that land where a human token can
// hit them next roll, as long as at least one candidate stays.
type SelfPreservationRule struct{}

func (r *SelfPreservationRule) Name() string { return "SelfPreservation" }

func (r *SelfPreservationRule) Apply(ctx *DecisionContext) bool {
	kept := make([]internal.Candidate, 0, len(ctx.Candidates))
	for _, c := range ctx.Candidates {
		if !internal.Threatened(c, ctx.Player, ctx.Players) {
			kept = append(kept, c)
		}
	}
	if len(kept) > 0 {
		ctx.Candidates = kept
	}
	return false
}

// MostAdvancedRule takes the token with the greatest current position.
type MostAdvancedRule struct{}

func (r *MostAdvancedRule) Name() string { return "MostAdvanced" }

func (r *MostAdvancedRule) Apply(ctx *DecisionContext) bool {
	c, ok := mostAdvanced(ctx.Candidates, nil)
	if !ok {
		return false
	}
	return ctx.choose(r.Name(), c)
}

// mostAdvanced returns the matching candidate with the greatest From.
// Candidates are in token-id order, so ties keep the lowest id.
func mostAdvanced(cands []internal.Candidate, match func(internal.Candidate) bool) (internal.Candidate, bool) {
	found := false
	var best internal.Candidate
	for _, c := range cands {
		if match != nil && !match(c) {
			continue
		}
		if !found || c.From > best.From {
			found, best = true, c
		}
	}
	return best, found
}

// BasicRules is the rule chain of basic bots.
func BasicRules() []DecisionRule {
	return []DecisionRule{
		&FinishExactRule{},
		&EnterBoardRule{},
		&MostAdvancedRule{},
	}
}

// TacticalRules is the full rule chain.
func TacticalRules() []DecisionRule {
	return []DecisionRule{
		&FinishExactRule{},
		&CaptureRule{},
		&EnterBoardRule{},
		&PressureRule{},
		&RaceRule{},
		&SelfPreservationRule{},
		&MostAdvancedRule{},
	}
}
