package bot

import (
	"ludo/internal/bot/internal"
	"ludo/internal/domain"
)

// RuleBot walks a rule chain and plays the first token a rule picks.
type RuleBot struct {
	Rules []DecisionRule
}

func (b *RuleBot) CalculateMove(game *domain.Game, player *domain.Player) (Move, error) {
	if game == nil || player == nil || !domain.ValidDice(game.DiceValue) {
		return Move{Pass: true}, nil
	}

	ctx := Decide(b.Rules, player, game.DiceValue, game.Players)
	if !ctx.Decided {
		return Move{Pass: true}, nil
	}
	return Move{TokenID: ctx.Chosen.TokenID, Rule: ctx.Rule}, nil
}

// Decide runs rules over the movable tokens of player.
func Decide(rules []DecisionRule, player *domain.Player, dice int, players []*domain.Player) *DecisionContext {
	ctx := &DecisionContext{
		Player:     player,
		Players:    players,
		Dice:       dice,
		Candidates: internal.Candidates(player, dice),
	}
	if len(ctx.Candidates) == 0 {
		return ctx
	}
	for _, rule := range rules {
		if rule.Apply(ctx) {
			break
		}
	}
	return ctx
}

// ChooseMove returns the token a bot plays with dice, or false when no token
// is movable and the turn has to pass.
func ChooseMove(player *domain.Player, dice int, players []*domain.Player, tactical bool) (int, bool) {
	rules := BasicRules()
	if tactical {
		rules = TacticalRules()
	}
	ctx := Decide(rules, player, dice, players)
	if !ctx.Decided {
		return 0, false
	}
	return ctx.Chosen.TokenID, true
}
