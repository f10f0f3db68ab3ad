package nakama

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"ludo/internal/app"
	"ludo/internal/bot"
	"ludo/internal/config"
	"ludo/internal/domain"
	"ludo/internal/ports"
	"ludo/internal/resume"

	"github.com/heroiclabs/nakama-common/runtime"
)

// tickRate is one tick per second, so every duration in ticks is in seconds.
const tickRate = 1

// MatchState holds the authoritative runtime state for the Nakama match handler.
type MatchState struct {
	Table       *app.Table                  `json:"-"`
	PlayerCount int                         `json:"player_count"`
	OwnerName   string                      `json:"owner_name"`
	Presences   map[string]runtime.Presence `json:"-"` // Map UserId -> Presence for targeted messaging
	Tick        int64                       `json:"tick"`

	OpenedAt       time.Time `json:"opened_at"`
	OwnerJoinTick  int64     `json:"owner_join_tick"`  // Tick the owner first joined, 0 before
	OwnerAwaySince time.Time `json:"owner_away_since"` // Zero while the owner is connected
	ResultTick     int64     `json:"result_tick"`      // Tick the match reached its result
	Settled        bool      `json:"settled"`
	Resumed        bool      `json:"resumed"`

	savedVersion int64
	dirty        bool
	labelPhase   domain.Phase
}

// Game returns the current game of the match.
func (ms *MatchState) Game() *domain.Game {
	return ms.Table.Game()
}

func (ms *MatchState) ownerConnected() bool {
	_, ok := ms.Presences[ms.Game().OwnerID]
	return ok
}

// lastOwnerActivity is now while the owner is connected, otherwise the moment
// they were last seen.
func (ms *MatchState) lastOwnerActivity(now time.Time) time.Time {
	if ms.ownerConnected() {
		return now
	}
	if !ms.OwnerAwaySince.IsZero() {
		return ms.OwnerAwaySince
	}
	return ms.OpenedAt
}

func (ms *MatchState) connected() map[string]bool {
	out := make(map[string]bool, len(ms.Presences))
	for userID := range ms.Presences {
		out[userID] = true
	}
	return out
}

type matchHandler struct {
	deps *moduleDeps
}

func newMatchHandler(deps *moduleDeps) *matchHandler {
	return &matchHandler{deps: deps}
}

func tableConfig(cfg config.GameConfig) app.TableConfig {
	return app.TableConfig{
		TurnTicks:   int64(cfg.TurnDurationSeconds * tickRate),
		PassTicks:   int64(cfg.PassDelaySeconds * tickRate),
		BotMinTicks: int64(cfg.BotMinDelaySeconds * tickRate),
		BotMaxTicks: int64(cfg.BotMaxDelaySeconds * tickRate),
	}
}

// MatchInit is called when the match is created, either for a new wager or to
// resume a stored one.
func (mh *matchHandler) MatchInit(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, params map[string]interface{}) (interface{}, int, string) {
	matchID, _ := ctx.Value(runtime.RUNTIME_CTX_MATCH_ID).(string)

	state, err := mh.newMatchState(matchID, params)
	if err != nil {
		logger.Error("MatchInit: %v", err)
		return nil, 0, ""
	}

	label, err := matchLabel(state.Game(), state.PlayerCount)
	if err != nil {
		logger.Error("MatchInit: %v", err)
		return nil, 0, ""
	}
	state.labelPhase = state.Game().Phase

	logger.Debug("MatchInit: Match %s for owner %s (tier=%s, players=%d, resumed=%t)",
		matchID, state.Game().OwnerID, state.Game().Tier, state.PlayerCount, state.Resumed)
	return state, tickRate, label
}

func (mh *matchHandler) newMatchState(matchID string, params map[string]interface{}) (*MatchState, error) {
	cfg := mh.deps.cfg
	state := &MatchState{
		Presences:    make(map[string]runtime.Presence),
		OpenedAt:     mh.deps.now(),
		savedVersion: -1,
	}

	if raw, _ := params[paramResume].(string); raw != "" {
		var record resume.Record
		if err := json.Unmarshal([]byte(raw), &record); err != nil {
			return nil, fmt.Errorf("failed to unmarshal resume record: %w", err)
		}
		// The resumed match lives under its new Nakama id from now on.
		record.MatchID = matchID
		game, err := resume.Restore(record)
		if err != nil {
			return nil, err
		}
		state.Table = app.NewTable(mh.deps.svc, mh.deps.sched, tableConfig(cfg), nil, game)
		state.PlayerCount = game.PlayerCount()
		state.Resumed = true
		state.OwnerAwaySince = record.LastActivity
		for _, p := range game.Players {
			if p.UserID == game.OwnerID {
				state.OwnerName = p.DisplayName
			}
		}
		return state, nil
	}

	ownerID, _ := params[paramOwner].(string)
	if ownerID == "" {
		return nil, errors.New("match has no owner")
	}
	tierID, _ := params[paramTier].(string)
	tier, ok := cfg.Tier(tierID)
	if !ok {
		return nil, fmt.Errorf("unknown tier %q", tierID)
	}
	difficulty := ""
	if tier.Practice() {
		difficulty, _ = params[paramDifficulty].(string)
	}

	spec := app.MatchSpec{
		ID:            matchID,
		OwnerID:       ownerID,
		Tier:          tier.ID,
		EntryAmount:   tier.EntryAmount,
		RewardAmount:  tier.RewardAmount,
		BotDifficulty: difficulty,
		BotLevel:      string(bot.LevelFor(tier.EntryAmount, cfg.TacticalBotEntryThreshold, difficulty)),
	}
	state.Table = app.NewTable(mh.deps.svc, mh.deps.sched, tableConfig(cfg), nil, mh.deps.svc.OpenMatch(spec))
	state.PlayerCount = tier.PlayerCount
	return state, nil
}

// MatchJoinAttempt lets only the owner in, and only while the match is running.
func (mh *matchHandler) MatchJoinAttempt(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, presence runtime.Presence, metadata map[string]string) (interface{}, bool, string) {
	matchState, ok := state.(*MatchState)
	if !ok {
		return state, false, "state not found"
	}

	g := matchState.Game()
	if presence.GetUserId() != g.OwnerID {
		return state, false, "only the match owner can join"
	}
	if g.Over() {
		return state, false, "match is over"
	}
	return state, true, ""
}

func (mh *matchHandler) MatchJoin(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, presences []runtime.Presence) interface{} {
	matchState, ok := state.(*MatchState)
	if !ok {
		logger.Error("MatchJoin: state not found")
		return state
	}

	g := matchState.Game()
	for _, p := range presences {
		matchState.Presences[p.GetUserId()] = p
		if p.GetUserId() != g.OwnerID {
			continue
		}
		if matchState.OwnerJoinTick == 0 {
			matchState.OwnerJoinTick = tick
		}
		if matchState.OwnerName == "" {
			matchState.OwnerName = p.GetUsername()
		}
		matchState.OwnerAwaySince = time.Time{}
		matchState.dirty = true
		logger.Info("MatchJoin: Owner %s joined match %s at tick %d.", p.GetUserId(), g.ID, tick)
	}

	mh.broadcastMatchState(matchState, dispatcher, logger, presences)
	return matchState
}

// MatchLeave is called when one or more players leave the match.
func (mh *matchHandler) MatchLeave(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, presences []runtime.Presence) interface{} {
	matchState, ok := state.(*MatchState)
	if !ok {
		logger.Error("MatchLeave: state not found")
		return state
	}

	g := matchState.Game()
	for _, p := range presences {
		delete(matchState.Presences, p.GetUserId())
		if p.GetUserId() == g.OwnerID {
			matchState.OwnerAwaySince = mh.deps.now()
			matchState.dirty = true
			logger.Info("MatchLeave: Owner %s left match %s, resume window open.", p.GetUserId(), g.ID)
		}
	}

	if g.Over() && len(matchState.Presences) == 0 {
		logger.Info("MatchLeave: Terminating finished match with no players.")
		mh.persist(matchState, logger)
		return nil
	}

	mh.persist(matchState, logger)
	return matchState
}

func (mh *matchHandler) MatchLoop(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, messages []runtime.MatchData) interface{} {
	matchState, ok := state.(*MatchState)
	if !ok {
		return state
	}

	matchState.Tick = tick

	for _, msg := range messages {
		mh.handleMessage(ctx, matchState, dispatcher, logger, msg)
	}

	switch matchState.Game().Phase {
	case domain.PhaseMatchmaking:
		mh.processLobby(ctx, matchState, dispatcher, logger)
	case domain.PhasePlaying:
		mh.processTurn(ctx, matchState, dispatcher, logger)
	}

	mh.updateLabel(matchState, dispatcher, logger)
	mh.persist(matchState, logger)

	if matchState.Game().Over() {
		if matchState.ResultTick == 0 {
			matchState.ResultTick = tick
		}
		linger := int64(mh.deps.cfg.ResultLingerSeconds * tickRate)
		if len(matchState.Presences) == 0 || tick-matchState.ResultTick >= linger {
			logger.Debug("MatchLoop: Match %s finished with status %s.", matchState.Game().ID, matchState.Game().Status)
			return nil
		}
	}

	return matchState
}

func (mh *matchHandler) handleMessage(ctx context.Context, state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, msg runtime.MatchData) {
	senderID := msg.GetUserId()

	var events []app.Event
	var err error
	switch msg.GetOpCode() {
	case OpRollDice:
		events, err = state.Table.Roll(senderID, state.Tick)
	case OpSelectToken:
		request := selectTokenRequest{}
		if err := json.Unmarshal(msg.GetData(), &request); err != nil {
			logger.Warn("SelectToken: Invalid request from %s: %v", senderID, err)
			return
		}
		events, err = state.Table.Select(senderID, request.TokenID, state.Tick)
	case OpResign:
		events, err = state.Table.Resign(senderID)
	default:
		logger.Warn("MatchLoop: Unknown opcode received: %d", msg.GetOpCode())
		return
	}

	if err != nil {
		if errors.Is(err, app.ErrIllegalAction) {
			logger.Warn("MatchLoop: Dropped opcode %d from %s: %v", msg.GetOpCode(), senderID, err)
		} else {
			logger.Error("MatchLoop: Opcode %d from %s failed: %v", msg.GetOpCode(), senderID, err)
		}
		return
	}
	mh.dispatchEvents(ctx, state, dispatcher, logger, events)
}

// processLobby seats the bots once the owner has waited the fill delay, or
// gives the entry back when the owner never shows up.
func (mh *matchHandler) processLobby(ctx context.Context, state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger) {
	cfg := mh.deps.cfg
	if !state.ownerConnected() {
		if mh.deps.now().Sub(state.lastOwnerActivity(mh.deps.now())) > cfg.ResumeWindow() {
			logger.Info("processLobby: Owner of match %s never came back, cancelling.", state.Game().ID)
			mh.cancelUnstarted(ctx, state, dispatcher, logger, app.ReasonAbandoned)
		}
		return
	}
	if state.Tick-state.OwnerJoinTick < int64(cfg.BotFillDelaySeconds*tickRate) {
		return
	}

	g := state.Game()
	seats := []app.Seat{{UserID: g.OwnerID, DisplayName: state.OwnerName}}
	for _, identity := range bot.PickBotIdentities(state.PlayerCount-1, rand.Intn(64), map[string]bool{g.OwnerID: true}) {
		seats = append(seats, app.Seat{UserID: identity.UserID, DisplayName: identity.DisplayName, IsBot: true})
	}

	events, err := state.Table.Start(seats, state.Tick)
	if err != nil {
		logger.Error("processLobby: Failed to start match %s: %v", g.ID, err)
		mh.cancelUnstarted(ctx, state, dispatcher, logger, app.ReasonStartFailed)
		return
	}
	logger.Info("processLobby: Match %s started with %d players (bots=%s).", g.ID, len(seats), g.BotLevel)

	mh.broadcastMatchState(state, dispatcher, logger, nil)
	mh.dispatchEvents(ctx, state, dispatcher, logger, events)
}

// processTurn runs timers and bots, and forfeits the match once the owner
// has been away longer than the resume window.
func (mh *matchHandler) processTurn(ctx context.Context, state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger) {
	now := mh.deps.now()
	if !state.ownerConnected() && now.Sub(state.lastOwnerActivity(now)) > mh.deps.cfg.ResumeWindow() {
		logger.Info("processTurn: Resume window of match %s expired, forfeiting.", state.Game().ID)
		events, err := state.Table.Cancel(app.ReasonResumeExpired)
		if err != nil {
			logger.Error("processTurn: Failed to cancel match %s: %v", state.Game().ID, err)
			return
		}
		mh.dispatchEvents(ctx, state, dispatcher, logger, events)
		return
	}

	events, err := state.Table.Advance(state.Tick)
	if err != nil {
		logger.Error("processTurn: Match %s: %v", state.Game().ID, err)
	}
	mh.dispatchEvents(ctx, state, dispatcher, logger, events)
}

func (mh *matchHandler) cancelUnstarted(ctx context.Context, state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, reason string) {
	events, err := state.Table.Cancel(reason)
	if err != nil {
		logger.Error("cancelUnstarted: %v", err)
		return
	}
	g := state.Game()
	if g.EntryAmount > 0 && !state.Settled {
		state.Settled = true
		refundEntry(ctx, mh.deps.ledger, logger, g.OwnerID, g.ID, g.EntryAmount)
	}
	mh.dispatchEvents(ctx, state, dispatcher, logger, events)
}

// settleWin pays the reward to a human winner. It runs at most once per match.
func (mh *matchHandler) settleWin(ctx context.Context, state *MatchState, logger runtime.Logger, p app.GameEndedPayload) {
	if state.Settled {
		return
	}
	state.Settled = true

	g := state.Game()
	winner := g.PlayerBySeat(p.WinnerSeat)
	if winner == nil || winner.IsBot || p.RewardAmount <= 0 {
		return
	}

	if err := mh.deps.ledger.Credit(ctx, winner.UserID, p.RewardAmount); err != nil {
		logger.Error("settleWin: Failed to pay %d to %s for match %s: %v", p.RewardAmount, winner.UserID, g.ID, err)
		return
	}
	if err := mh.deps.ledger.RecordTransaction(ctx, ports.Transaction{
		UserID:  winner.UserID,
		MatchID: g.ID,
		Amount:  p.RewardAmount,
		Kind:    ports.TransactionWin,
	}); err != nil {
		logger.Error("settleWin: Failed to record win of %s: %v", winner.UserID, err)
	}

	note := ports.Notification{
		Title:   "You won!",
		Message: fmt.Sprintf("You won %d gold at the %s table.", p.RewardAmount, g.Tier),
		Amount:  p.RewardAmount,
		MatchID: g.ID,
	}
	if err := mh.deps.notifier.NotifyWin(ctx, winner.UserID, note); err != nil {
		logger.Warn("settleWin: %v", err)
	}
}

// dispatchEvents applies the side effects of events and sends them to the
// connected players.
func (mh *matchHandler) dispatchEvents(ctx context.Context, state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, events []app.Event) {
	for _, ev := range events {
		if ev.Kind == app.EventGameEnded {
			mh.settleWin(ctx, state, logger, ev.Payload.(app.GameEndedPayload))
		}
		mh.broadcastEvent(state, dispatcher, logger, ev)
	}
}

// broadcastEvent handles the conversion and dispatching of app events to Nakama.
func (mh *matchHandler) broadcastEvent(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, ev app.Event) {
	opCode, data, err := encodeEvent(ev)
	if err != nil {
		logger.Error("broadcastEvent: %v", err)
		return
	}

	// Determine recipients (default to broadcast)
	var recipients []runtime.Presence
	if len(ev.Recipients) > 0 {
		for _, uid := range ev.Recipients {
			if p, ok := state.Presences[uid]; ok {
				recipients = append(recipients, p)
			}
		}
		// Intended recipients that are not connected (bots) must not turn
		// into a broadcast.
		if len(recipients) == 0 {
			return
		}
	}

	if err := dispatcher.BroadcastMessage(opCode, data, recipients, nil, true); err != nil {
		logger.Warn("broadcastEvent: Failed to send %s: %v", ev.Kind, err)
	}
}

func (mh *matchHandler) broadcastMatchState(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, presences []runtime.Presence) {
	view := toMatchStateView(state.Game(), state.connected(), state.Tick, state.Table.Deadline())
	data, err := json.Marshal(view)
	if err != nil {
		logger.Error("broadcastMatchState: Failed to marshal: %v", err)
		return
	}
	if err := dispatcher.BroadcastMessage(OpMatchState, data, presences, nil, true); err != nil {
		logger.Warn("broadcastMatchState: %v", err)
	}
}

func (mh *matchHandler) updateLabel(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger) {
	g := state.Game()
	if state.labelPhase == g.Phase {
		return
	}
	label, err := matchLabel(g, state.PlayerCount)
	if err != nil {
		logger.Error("UpdateLabel: %v", err)
		return
	}
	if err := dispatcher.MatchLabelUpdate(label); err != nil {
		logger.Error("UpdateLabel: Failed to update: %v", err)
		return
	}
	state.labelPhase = g.Phase
}

// persist hands a snapshot to the async writer whenever the game or the
// owner's presence changed. A match that never seated its players is never
// stored.
func (mh *matchHandler) persist(state *MatchState, logger runtime.Logger) {
	g := state.Game()
	if g.PlayerCount() == 0 {
		return
	}
	if g.Version == state.savedVersion && !state.dirty {
		return
	}

	row, err := resume.Snapshot(g, state.lastOwnerActivity(mh.deps.now())).ToRow()
	if err != nil {
		logger.Error("persist: Match %s: %v", g.ID, err)
		return
	}
	mh.deps.writer.Submit(row)
	state.savedVersion = g.Version
	state.dirty = false
}

func (mh *matchHandler) MatchTerminate(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, graceSeconds int) interface{} {
	logger.Debug("MatchTerminate: Match terminated with %d seconds of grace", graceSeconds)
	if matchState, ok := state.(*MatchState); ok {
		mh.persist(matchState, logger)
		if err := mh.deps.writer.Flush(ctx); err != nil {
			logger.Error("MatchTerminate: Failed to flush snapshots: %v", err)
		}
	}
	return state
}

// MatchSignal handles out-of-band requests. A forfeit signal cancels the match
// without a refund.
func (mh *matchHandler) MatchSignal(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, data string) (interface{}, string) {
	matchState, ok := state.(*MatchState)
	if !ok {
		return state, "state not found"
	}
	if data != signalForfeit {
		return matchState, "unknown signal"
	}

	if matchState.Game().Phase == domain.PhaseMatchmaking {
		mh.cancelUnstarted(ctx, matchState, dispatcher, logger, app.ReasonAbandoned)
	} else {
		events, err := matchState.Table.Cancel(app.ReasonAbandoned)
		if err != nil {
			return matchState, err.Error()
		}
		mh.dispatchEvents(ctx, matchState, dispatcher, logger, events)
	}
	mh.updateLabel(matchState, dispatcher, logger)
	mh.persist(matchState, logger)
	return matchState, "forfeited"
}
