package nakama

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"ludo/internal/domain"
	"ludo/internal/ports"
	"ludo/internal/resume"

	"github.com/heroiclabs/nakama-common/runtime"
)

// ResumeCheckResponse tells the client whether a match can be resumed.
type ResumeCheckResponse struct {
	Active       bool   `json:"active"`
	MatchID      string `json:"match_id,omitempty"`
	Tier         string `json:"tier,omitempty"`
	EntryAmount  int64  `json:"entry_amount,omitempty"`
	RewardAmount int64  `json:"reward_amount,omitempty"`
	ExpiresAt    int64  `json:"expires_at,omitempty"`
	Ticket       string `json:"ticket,omitempty"`
	Reason       string `json:"reason,omitempty"`
}

// ResumeMatchRequest carries the ticket handed out by resume_check.
type ResumeMatchRequest struct {
	Ticket string `json:"ticket"`
}

// ResumeMatchResponse is the match the client should join.
type ResumeMatchResponse struct {
	MatchID string `json:"match_id"`
	Resumed bool   `json:"resumed"`
}

// DismissResumeResponse reports whether a stored match was dropped.
type DismissResumeResponse struct {
	Dismissed bool `json:"dismissed"`
}

// loadRecord reads the caller's stored match. Any storage failure is treated
// as having nothing to resume.
func loadRecord(ctx context.Context, deps *moduleDeps, logger runtime.Logger, userID string) (resume.Record, bool) {
	row, err := deps.store.LoadActiveMatch(ctx, userID)
	if err != nil {
		if !errors.Is(err, ports.ErrNoActiveMatch) {
			logger.Error("loadRecord [User:%s]: %v", userID, err)
		}
		return resume.Record{}, false
	}
	record, err := resume.FromRow(row)
	if err != nil {
		logger.Error("loadRecord [User:%s]: Stored match %s is unreadable: %v", userID, row.ID, err)
		return resume.Record{}, false
	}
	return record, true
}

func newResumeCheckRPC(deps *moduleDeps) rpcFunc {
	return func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
		userID, err := callerID(ctx)
		if err != nil {
			return "", err
		}

		record, ok := loadRecord(ctx, deps, logger, userID)
		if !ok {
			return encodeResponse(ResumeCheckResponse{})
		}

		window := deps.cfg.ResumeWindow()
		if err := resume.Eligible(record, userID, deps.now(), window); err != nil {
			// Finished, cancelled and expired matches are gone for good.
			if err := deps.store.ClearActiveMatch(ctx, userID, record.MatchID); err != nil {
				logger.Warn("RpcResumeCheck [User:%s]: Failed to clear match %s: %v", userID, record.MatchID, err)
			}
			return encodeResponse(ResumeCheckResponse{Reason: err.Error()})
		}

		ticket, err := deps.tickets.Issue(record, window)
		if err != nil {
			logger.Error("RpcResumeCheck [User:%s]: Failed to issue ticket: %v", userID, err)
			return encodeResponse(ResumeCheckResponse{})
		}
		return encodeResponse(ResumeCheckResponse{
			Active:       true,
			MatchID:      record.MatchID,
			Tier:         record.Tier,
			EntryAmount:  record.EntryAmount,
			RewardAmount: record.RewardAmount,
			ExpiresAt:    record.Expires(window).Unix(),
			Ticket:       ticket,
		})
	}
}

// newResumeMatchRPC returns the running match of a valid ticket, or rebuilds
// it from storage when it no longer runs on the server. A stored match is
// rebuilt at most once; later callers get the match it was rebuilt as.
func newResumeMatchRPC(deps *moduleDeps) rpcFunc {
	return func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
		userID, err := callerID(ctx)
		if err != nil {
			return "", err
		}

		var req ResumeMatchRequest
		if err := decodePayload(payload, &req); err != nil {
			return "", err
		}
		ticket, err := deps.tickets.Verify(req.Ticket, userID)
		if err != nil {
			logger.Warn("RpcResumeMatch [User:%s]: %v", userID, err)
			return "", errInvalidTicket
		}

		record, ok := loadRecord(ctx, deps, logger, userID)
		if !ok || record.MatchID != ticket.MatchID {
			return "", errNoActiveMatch
		}
		if err := resume.Eligible(record, userID, deps.now(), deps.cfg.ResumeWindow()); err != nil {
			return "", runtime.NewError(err.Error(), codeFailedPrecondition)
		}

		if live, err := deps.matches.MatchGet(ctx, record.MatchID); err == nil && live != nil {
			logger.Info("RpcResumeMatch [User:%s]: Match %s is still running.", userID, record.MatchID)
			return encodeResponse(ResumeMatchResponse{MatchID: record.MatchID})
		}

		resumedAs, claimed, err := deps.claims.Claim(ctx, userID, record.MatchID)
		if err != nil {
			logger.Error("RpcResumeMatch [User:%s]: %v", userID, err)
			return "", errCreateFailed
		}
		if !claimed {
			if resumedAs == "" {
				return "", errResumeBusy
			}
			logger.Info("RpcResumeMatch [User:%s]: Match %s was already resumed as %s.", userID, record.MatchID, resumedAs)
			return encodeResponse(ResumeMatchResponse{MatchID: resumedAs, Resumed: true})
		}

		data, err := json.Marshal(record)
		if err != nil {
			deps.releaseClaim(ctx, logger, userID, record.MatchID)
			return "", errCreateFailed
		}
		matchID, err := deps.matches.MatchCreate(ctx, MatchNameLudo, map[string]interface{}{paramResume: string(data)})
		if err != nil {
			logger.Error("RpcResumeMatch [User:%s]: Failed to recreate match %s: %v", userID, record.MatchID, err)
			deps.releaseClaim(ctx, logger, userID, record.MatchID)
			return "", errCreateFailed
		}
		if err := deps.claims.Settle(ctx, userID, record.MatchID, matchID); err != nil {
			logger.Warn("RpcResumeMatch [User:%s]: Failed to settle claim on %s: %v", userID, record.MatchID, err)
		}

		logger.Info("RpcResumeMatch [User:%s]: Match %s resumed as %s.", userID, record.MatchID, matchID)
		return encodeResponse(ResumeMatchResponse{MatchID: matchID, Resumed: true})
	}
}

func (d *moduleDeps) releaseClaim(ctx context.Context, logger runtime.Logger, userID, matchID string) {
	if err := d.claims.Release(ctx, userID, matchID); err != nil {
		logger.Warn("RpcResumeMatch [User:%s]: %v", userID, err)
	}
}

// newDismissResumeRPC gives up the caller's stored match. A running match is
// forfeited without a refund.
func newDismissResumeRPC(deps *moduleDeps) rpcFunc {
	return func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
		userID, err := callerID(ctx)
		if err != nil {
			return "", err
		}

		record, ok := loadRecord(ctx, deps, logger, userID)
		if !ok {
			return encodeResponse(DismissResumeResponse{})
		}

		if record.Status == domain.StatusInProgress {
			if _, err := deps.matches.MatchSignal(ctx, record.MatchID, signalForfeit); err != nil {
				logger.Debug("RpcDismissResume [User:%s]: Match %s not running: %v", userID, record.MatchID, err)
			}
		}
		if err := deps.store.ClearActiveMatch(ctx, userID, record.MatchID); err != nil {
			logger.Error("RpcDismissResume [User:%s]: %v", userID, err)
			return "", runtime.NewError("could not dismiss match", codeInternal)
		}
		logger.Info("RpcDismissResume [User:%s]: Dismissed match %s.", userID, record.MatchID)
		return encodeResponse(DismissResumeResponse{Dismissed: true})
	}
}
