package nakama

import (
	"context"
	"database/sql"
	"errors"

	"ludo/internal/bot"
	"ludo/internal/domain"
	"ludo/internal/ports"
	"ludo/internal/resume"

	"github.com/heroiclabs/nakama-common/runtime"
)

// CreateMatchRequest is the payload of the create_match RPC.
type CreateMatchRequest struct {
	Tier string `json:"tier"`
	// Difficulty of practice bots: easy, normal or hard. Ignored for wagers.
	Difficulty string `json:"difficulty,omitempty"`
}

// CreateMatchResponse is returned to clients once the match exists.
type CreateMatchResponse struct {
	MatchID      string `json:"match_id"`
	Tier         string `json:"tier"`
	EntryAmount  int64  `json:"entry_amount"`
	RewardAmount int64  `json:"reward_amount"`
	PlayerCount  int    `json:"player_count"`
	BotLevel     string `json:"bot_level"`
}

// newCreateMatchRPC debits the entry fee and creates a match owned by the
// caller. A failed creation gives the fee back.
func newCreateMatchRPC(deps *moduleDeps) rpcFunc {
	return func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
		userID, err := callerID(ctx)
		if err != nil {
			return "", err
		}

		var req CreateMatchRequest
		if err := decodePayload(payload, &req); err != nil {
			return "", err
		}
		tier, ok := deps.cfg.Tier(req.Tier)
		if !ok {
			return "", errUnknownTier
		}
		if req.Difficulty != "" && req.Difficulty != "easy" && req.Difficulty != "normal" && req.Difficulty != "hard" {
			return "", errBadPayload
		}

		if hasResumableMatch(ctx, deps, logger, userID) {
			return "", errActiveMatch
		}

		if tier.EntryAmount > 0 {
			if err := deps.ledger.Debit(ctx, userID, tier.EntryAmount); err != nil {
				if errors.Is(err, ports.ErrInsufficientFunds) {
					logger.Info("RpcCreateMatch [User:%s]: Cannot afford tier %s.", userID, tier.ID)
					return "", errInsufficientFunds
				}
				logger.Error("RpcCreateMatch [User:%s]: Debit failed: %v", userID, err)
				return "", errCreateFailed
			}
		}

		params := map[string]interface{}{
			paramOwner:      userID,
			paramTier:       tier.ID,
			paramDifficulty: req.Difficulty,
		}
		matchID, err := deps.matches.MatchCreate(ctx, MatchNameLudo, params)
		if err != nil {
			logger.Error("RpcCreateMatch [User:%s]: Failed to create match: %v", userID, err)
			if tier.EntryAmount > 0 {
				refundEntry(ctx, deps.ledger, logger, userID, "", tier.EntryAmount)
			}
			return "", errCreateFailed
		}

		if tier.EntryAmount > 0 {
			if err := deps.ledger.RecordTransaction(ctx, ports.Transaction{
				UserID:  userID,
				MatchID: matchID,
				Amount:  tier.EntryAmount,
				Kind:    ports.TransactionEntry,
			}); err != nil {
				logger.Error("RpcCreateMatch [User:%s]: Failed to record entry: %v", userID, err)
			}
		}

		difficulty := ""
		if tier.Practice() {
			difficulty = req.Difficulty
		}
		logger.Info("RpcCreateMatch [User:%s]: Created match %s (tier=%s).", userID, matchID, tier.ID)
		return encodeResponse(CreateMatchResponse{
			MatchID:      matchID,
			Tier:         tier.ID,
			EntryAmount:  tier.EntryAmount,
			RewardAmount: tier.RewardAmount,
			PlayerCount:  tier.PlayerCount,
			BotLevel:     string(bot.LevelFor(tier.EntryAmount, deps.cfg.TacticalBotEntryThreshold, difficulty)),
		})
	}
}

// hasResumableMatch reports whether userID still has a running match within
// its resume window. Storage failures count as no match.
func hasResumableMatch(ctx context.Context, deps *moduleDeps, logger runtime.Logger, userID string) bool {
	row, err := deps.store.LoadActiveMatch(ctx, userID)
	if err != nil {
		if !errors.Is(err, ports.ErrNoActiveMatch) {
			logger.Error("hasResumableMatch [User:%s]: %v", userID, err)
		}
		return false
	}
	record, err := resume.FromRow(row)
	if err != nil {
		return false
	}
	return record.Status == domain.StatusInProgress &&
		resume.Eligible(record, userID, deps.now(), deps.cfg.ResumeWindow()) == nil
}
