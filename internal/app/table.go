package app

import (
	"fmt"
	"math/rand"
	"time"

	"ludo/internal/bot"
	"ludo/internal/domain"
)

// TableConfig holds the timings of a table, in ticks.
type TableConfig struct {
	TurnTicks   int64 // 0 disables the turn timer
	PassTicks   int64
	BotMinTicks int64
	BotMaxTicks int64
}

// Table owns one match: its game, its bot agents and its turn timer. All
// mutation of the match goes through the table, from a single goroutine.
type Table struct {
	svc    *Service
	sched  *Scheduler
	cfg    TableConfig
	rng    *rand.Rand
	game   *domain.Game
	agents map[int]*bot.Agent

	deadlineSeq  int64
	turnDeadline int64
}

// NewTable wraps game. Bots already seated in game get their agents.
func NewTable(svc *Service, sched *Scheduler, cfg TableConfig, rng *rand.Rand, game *domain.Game) *Table {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	t := &Table{
		svc:    svc,
		sched:  sched,
		cfg:    cfg,
		rng:    rng,
		game:   game,
		agents: make(map[int]*bot.Agent),
	}
	t.buildAgents()
	return t
}

// Game returns the current game. Callers must not edit it.
func (t *Table) Game() *domain.Game {
	return t.game
}

// Deadline is the tick at which the current human turn is forfeited.
func (t *Table) Deadline() int64 {
	return t.turnDeadline
}

// Agent returns the bot agent seated at seat.
func (t *Table) Agent(seat int) (*bot.Agent, bool) {
	a, ok := t.agents[seat]
	return a, ok
}

// Start seats the players and begins the first turn.
func (t *Table) Start(seats []Seat, tick int64) ([]Event, error) {
	if t.game.Phase != domain.PhaseMatchmaking {
		return nil, fmt.Errorf("%w: match already started", ErrIllegalAction)
	}
	spec := MatchSpec{
		ID:            t.game.ID,
		OwnerID:       t.game.OwnerID,
		Tier:          t.game.Tier,
		EntryAmount:   t.game.EntryAmount,
		RewardAmount:  t.game.RewardAmount,
		BotDifficulty: t.game.BotDifficulty,
		BotLevel:      t.game.BotLevel,
	}
	next, events, err := t.svc.StartGame(spec, seats)
	if err != nil {
		return nil, err
	}
	t.game = next
	t.buildAgents()
	t.syncDeadline(tick)
	t.plan(tick)
	return events, nil
}

// Roll handles a roll request from a human player.
func (t *Table) Roll(userID string, tick int64) ([]Event, error) {
	seat, err := t.humanSeat(userID)
	if err != nil {
		return nil, err
	}
	events, err := t.roll(seat)
	if err != nil {
		return nil, err
	}
	t.plan(tick)
	return events, nil
}

// Select handles a token selection from a human player.
func (t *Table) Select(userID string, tokenID int, tick int64) ([]Event, error) {
	seat, err := t.humanSeat(userID)
	if err != nil {
		return nil, err
	}
	next, events, err := t.svc.SelectToken(t.game, seat, tokenID)
	if err != nil {
		return nil, err
	}
	t.game = next
	t.syncDeadline(tick)
	t.plan(tick)
	return events, nil
}

// Resign ends the match on behalf of userID.
func (t *Table) Resign(userID string) ([]Event, error) {
	seat := t.game.SeatOf(userID)
	if seat < 0 {
		return nil, ErrUnknownPlayer
	}
	next, events, err := t.svc.Resign(t.game, seat)
	if err != nil {
		return nil, err
	}
	t.game = next
	t.sched.Cancel(t.game.ID)
	return events, nil
}

// Cancel ends the match for reason.
func (t *Table) Cancel(reason string) ([]Event, error) {
	next, events, err := t.svc.Cancel(t.game, reason)
	if err != nil {
		return nil, err
	}
	t.game = next
	t.sched.Cancel(t.game.ID)
	return events, nil
}

// Advance runs the turn timer and any due scheduled work, then plans the
// next piece of delayed work.
func (t *Table) Advance(tick int64) ([]Event, error) {
	if t.game.Phase != domain.PhasePlaying {
		t.sched.Cancel(t.game.ID)
		return nil, nil
	}
	t.syncDeadline(tick)

	var events []Event
	if t.timerExpired(tick) {
		next, evs, err := t.svc.ForfeitTurn(t.game)
		if err != nil {
			return nil, err
		}
		t.game = next
		t.sched.Cancel(t.game.ID)
		t.syncDeadline(tick)
		events = append(events, evs...)
	}

	if task, ok := t.sched.PopDue(t.game.ID, tick); ok && t.live(task) {
		evs, err := t.run(task)
		if err != nil {
			t.plan(tick)
			return events, err
		}
		t.syncDeadline(tick)
		events = append(events, evs...)
	}

	t.plan(tick)
	return events, nil
}

func (t *Table) timerExpired(tick int64) bool {
	if t.cfg.TurnTicks <= 0 {
		return false
	}
	p := t.game.CurrentPlayer()
	if p == nil || p.IsBot {
		return false
	}
	if t.game.Stage != domain.StageAwaitingRoll && t.game.Stage != domain.StageAwaitingMove {
		return false
	}
	return tick >= t.turnDeadline
}

func (t *Table) syncDeadline(tick int64) {
	if t.deadlineSeq == t.game.TurnSeq {
		return
	}
	t.deadlineSeq = t.game.TurnSeq
	t.turnDeadline = tick + t.cfg.TurnTicks
}

func (t *Table) humanSeat(userID string) (int, error) {
	seat := t.game.SeatOf(userID)
	if seat < 0 {
		return -1, ErrUnknownPlayer
	}
	if t.game.Players[seat].IsBot {
		return -1, ErrNotYourTurn
	}
	return seat, nil
}

func (t *Table) roll(seat int) ([]Event, error) {
	rolled, _, err := t.svc.RequestRoll(t.game, seat)
	if err != nil {
		return nil, err
	}
	settled, events, err := t.svc.SettleRoll(rolled)
	if err != nil {
		return nil, err
	}
	t.game = settled
	return events, nil
}

// live reports whether a task still belongs to the current turn.
func (t *Table) live(task Task) bool {
	g := t.game
	if g.Phase != domain.PhasePlaying || task.TurnSeq != g.TurnSeq || task.Seat != g.CurrentTurn {
		return false
	}
	kind, ok := t.nextTaskKind()
	return ok && kind == task.Kind
}

func (t *Table) run(task Task) ([]Event, error) {
	switch task.Kind {
	case TaskPassTurn:
		next, events, err := t.svc.PassTurn(t.game)
		if err != nil {
			return nil, err
		}
		t.game = next
		return events, nil
	case TaskBotRoll:
		return t.roll(task.Seat)
	case TaskBotMove:
		tokenID, err := t.botChoice(task.Seat)
		if err != nil {
			return nil, err
		}
		next, events, err := t.svc.SelectToken(t.game, task.Seat, tokenID)
		if err != nil {
			return nil, err
		}
		t.game = next
		return events, nil
	default:
		return nil, fmt.Errorf("unknown task kind %q", task.Kind)
	}
}

func (t *Table) botChoice(seat int) (int, error) {
	if agent, ok := t.agents[seat]; ok {
		move, err := agent.PlayAtSeat(t.game, seat)
		if err == nil && !move.Pass {
			return move.TokenID, nil
		}
	}
	movable := domain.MovableTokens(t.game.PlayerBySeat(seat), t.game.DiceValue)
	if len(movable) == 0 {
		return 0, fmt.Errorf("%w: bot at seat %d has no move", ErrWrongStage, seat)
	}
	return movable[0], nil
}

func (t *Table) nextTaskKind() (TaskKind, bool) {
	g := t.game
	if g.Stage == domain.StageTurnResolved {
		return TaskPassTurn, true
	}
	p := g.CurrentPlayer()
	if p == nil || !p.IsBot {
		return "", false
	}
	switch g.Stage {
	case domain.StageAwaitingRoll:
		return TaskBotRoll, true
	case domain.StageAwaitingMove:
		return TaskBotMove, true
	}
	return "", false
}

// plan schedules the delayed work of the current turn. A pending task that
// belongs to an older turn is replaced.
func (t *Table) plan(tick int64) {
	g := t.game
	if g.Phase != domain.PhasePlaying {
		t.sched.Cancel(g.ID)
		return
	}
	kind, ok := t.nextTaskKind()
	if !ok {
		return
	}
	if pending, busy := t.sched.Pending(g.ID); busy {
		if pending.Kind == kind && pending.TurnSeq == g.TurnSeq && pending.Seat == g.CurrentTurn {
			return
		}
		t.sched.Cancel(g.ID)
	}

	delay := t.cfg.PassTicks
	if kind != TaskPassTurn {
		delay = t.botDelay()
	}
	t.sched.Schedule(Task{
		MatchID: g.ID,
		Kind:    kind,
		Seat:    g.CurrentTurn,
		TurnSeq: g.TurnSeq,
		DueTick: tick + delay,
	})
}

func (t *Table) botDelay() int64 {
	lo, hi := t.cfg.BotMinTicks, t.cfg.BotMaxTicks
	if hi <= lo {
		return lo
	}
	return lo + t.rng.Int63n(hi-lo+1)
}

func (t *Table) buildAgents() {
	level, err := bot.ParseLevel(t.game.BotLevel)
	if err != nil {
		level = bot.LevelBasic
	}
	for _, p := range t.game.Players {
		if !p.IsBot {
			continue
		}
		if _, ok := t.agents[p.Seat]; ok {
			continue
		}
		agent, err := bot.NewAgent(p.UserID, p.DisplayName, level)
		if err != nil {
			continue
		}
		t.agents[p.Seat] = agent
	}
}
