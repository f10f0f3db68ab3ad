package nakama

import (
	"context"
	"database/sql"
	"encoding/json"

	"ludo/internal/ports"

	"github.com/heroiclabs/nakama-common/runtime"
)

// gRPC status codes used by Nakama for RPC errors.
const (
	codeInvalidArgument    = 3
	codeNotFound           = 5
	codeFailedPrecondition = 9
	codeAborted            = 10
	codeInternal           = 13
	codeUnauthenticated    = 16
)

var (
	errUnauthenticated   = runtime.NewError("user id not found in context", codeUnauthenticated)
	errBadPayload        = runtime.NewError("invalid request payload", codeInvalidArgument)
	errUnknownTier       = runtime.NewError("unknown stake tier", codeInvalidArgument)
	errInsufficientFunds = runtime.NewError("insufficient funds", codeFailedPrecondition)
	errActiveMatch       = runtime.NewError("finish or dismiss your active match first", codeFailedPrecondition)
	errNoActiveMatch     = runtime.NewError("no match to resume", codeNotFound)
	errInvalidTicket     = runtime.NewError("invalid resume ticket", codeUnauthenticated)
	errCreateFailed      = runtime.NewError("could not create match", codeInternal)
	errResumeBusy        = runtime.NewError("match is already being resumed", codeAborted)
)

type rpcFunc func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error)

// RegisterRPCs registers Nakama RPC endpoints.
func RegisterRPCs(initializer runtime.Initializer, deps *moduleDeps) error {
	rpcs := map[string]rpcFunc{
		RpcCreateMatch:   newCreateMatchRPC(deps),
		RpcResumeCheck:   newResumeCheckRPC(deps),
		RpcResumeMatch:   newResumeMatchRPC(deps),
		RpcDismissResume: newDismissResumeRPC(deps),
	}
	for id, fn := range rpcs {
		if err := initializer.RegisterRpc(id, fn); err != nil {
			return err
		}
	}
	return nil
}

func callerID(ctx context.Context) (string, error) {
	userID, _ := ctx.Value(runtime.RUNTIME_CTX_USER_ID).(string)
	if userID == "" {
		return "", errUnauthenticated
	}
	return userID, nil
}

// decodePayload accepts an empty payload as an empty request.
func decodePayload(payload string, v any) error {
	if payload == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(payload), v); err != nil {
		return errBadPayload
	}
	return nil
}

func encodeResponse(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// refundEntry gives an entry fee back and records it.
func refundEntry(ctx context.Context, ledger ports.WagerLedger, logger runtime.Logger, userID, matchID string, amount int64) {
	if err := ledger.Credit(ctx, userID, amount); err != nil {
		logger.Error("refundEntry: Failed to refund %d to %s: %v", amount, userID, err)
		return
	}
	if err := ledger.RecordTransaction(ctx, ports.Transaction{
		UserID:  userID,
		MatchID: matchID,
		Amount:  amount,
		Kind:    ports.TransactionRefund,
	}); err != nil {
		logger.Error("refundEntry: Failed to record refund for %s: %v", userID, err)
	}
}
