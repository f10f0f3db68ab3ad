package nakama

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"ludo/internal/app"
	"ludo/internal/bot"
	"ludo/internal/config"
	"ludo/internal/ports"
	"ludo/internal/resume"

	"github.com/heroiclabs/nakama-common/api"
	"github.com/heroiclabs/nakama-common/runtime"
)

// noopLogger implements runtime.Logger for tests that only need to satisfy the interface.
type noopLogger struct{}

func (noopLogger) Debug(string, ...interface{}) {}
func (noopLogger) Info(string, ...interface{})  {}
func (noopLogger) Warn(string, ...interface{})  {}
func (noopLogger) Error(string, ...interface{}) {}
func (noopLogger) WithField(string, interface{}) runtime.Logger {
	return noopLogger{}
}
func (noopLogger) WithFields(map[string]interface{}) runtime.Logger {
	return noopLogger{}
}
func (noopLogger) Fields() map[string]interface{} {
	return nil
}

type sentMessage struct {
	opCode     int64
	data       []byte
	recipients []runtime.Presence
}

// mockDispatcher records match dispatcher calls for assertions.
type mockDispatcher struct {
	messages     []sentMessage
	labelUpdates []string
}

func (md *mockDispatcher) BroadcastMessage(opCode int64, data []byte, presences []runtime.Presence, sender runtime.Presence, reliable bool) error {
	md.messages = append(md.messages, sentMessage{opCode: opCode, data: append([]byte(nil), data...), recipients: presences})
	return nil
}

func (md *mockDispatcher) BroadcastMessageDeferred(opCode int64, data []byte, presences []runtime.Presence, sender runtime.Presence, reliable bool) error {
	return nil
}

func (md *mockDispatcher) MatchKick(presences []runtime.Presence) error {
	return nil
}

func (md *mockDispatcher) MatchLabelUpdate(label string) error {
	md.labelUpdates = append(md.labelUpdates, label)
	return nil
}

func (md *mockDispatcher) count(opCode int64) int {
	n := 0
	for _, m := range md.messages {
		if m.opCode == opCode {
			n++
		}
	}
	return n
}

func (md *mockDispatcher) last(opCode int64) (sentMessage, bool) {
	for i := len(md.messages) - 1; i >= 0; i-- {
		if md.messages[i].opCode == opCode {
			return md.messages[i], true
		}
	}
	return sentMessage{}, false
}

type testPresence struct {
	userID string
}

func (p testPresence) GetHidden() bool                   { return false }
func (p testPresence) GetPersistence() bool              { return false }
func (p testPresence) GetUsername() string               { return "name-" + p.userID }
func (p testPresence) GetStatus() string                 { return "" }
func (p testPresence) GetReason() runtime.PresenceReason { return 0 }
func (p testPresence) GetUserId() string                 { return p.userID }
func (p testPresence) GetSessionId() string              { return "session-" + p.userID }
func (p testPresence) GetNodeId() string                 { return "node-1" }

type testMessage struct {
	testPresence
	opCode int64
	data   []byte
}

func (m testMessage) GetOpCode() int64      { return m.opCode }
func (m testMessage) GetData() []byte       { return m.data }
func (m testMessage) GetReliable() bool     { return true }
func (m testMessage) GetReceiveTime() int64 { return 0 }

type fakeLedger struct {
	balances     map[string]int64
	credits      map[string]int64
	transactions []ports.Transaction
	debitErr     error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{balances: map[string]int64{}, credits: map[string]int64{}}
}

func (l *fakeLedger) Balance(ctx context.Context, userID string) (int64, error) {
	return l.balances[userID], nil
}

func (l *fakeLedger) Debit(ctx context.Context, userID string, amount int64) error {
	if l.debitErr != nil {
		return l.debitErr
	}
	if l.balances[userID] < amount {
		return ports.ErrInsufficientFunds
	}
	l.balances[userID] -= amount
	return nil
}

func (l *fakeLedger) Credit(ctx context.Context, userID string, amount int64) error {
	l.balances[userID] += amount
	l.credits[userID] += amount
	return nil
}

func (l *fakeLedger) RecordTransaction(ctx context.Context, tx ports.Transaction) error {
	l.transactions = append(l.transactions, tx)
	return nil
}

func (l *fakeLedger) kinds() []ports.TransactionKind {
	out := make([]ports.TransactionKind, 0, len(l.transactions))
	for _, tx := range l.transactions {
		out = append(out, tx.Kind)
	}
	return out
}

type memMatchStore struct {
	mu   sync.Mutex
	rows map[string]ports.MatchRow
}

func newMemMatchStore() *memMatchStore {
	return &memMatchStore{rows: make(map[string]ports.MatchRow)}
}

func (s *memMatchStore) SaveMatch(ctx context.Context, row ports.MatchRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[row.OwnerID] = row
	return nil
}

func (s *memMatchStore) LoadActiveMatch(ctx context.Context, userID string) (ports.MatchRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[userID]
	if !ok {
		return ports.MatchRow{}, ports.ErrNoActiveMatch
	}
	return row, nil
}

func (s *memMatchStore) ClearActiveMatch(ctx context.Context, userID, matchID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if row, ok := s.rows[userID]; ok && (matchID == "" || row.ID == matchID) {
		delete(s.rows, userID)
	}
	return nil
}

type fakeNotifier struct {
	sent map[string][]ports.Notification
}

func (n *fakeNotifier) NotifyWin(ctx context.Context, userID string, note ports.Notification) error {
	if n.sent == nil {
		n.sent = map[string][]ports.Notification{}
	}
	n.sent[userID] = append(n.sent[userID], note)
	return nil
}

type fakeMatches struct {
	created   []map[string]interface{}
	signals   []string
	live      map[string]bool
	createErr error
	nextID    string
}

func (f *fakeMatches) MatchCreate(ctx context.Context, module string, params map[string]interface{}) (string, error) {
	if f.createErr != nil {
		return "", f.createErr
	}
	f.created = append(f.created, params)
	if f.nextID != "" {
		return f.nextID, nil
	}
	return "match-new.node-1", nil
}

func (f *fakeMatches) MatchGet(ctx context.Context, id string) (*api.Match, error) {
	if f.live[id] {
		return &api.Match{MatchId: id}, nil
	}
	return nil, nil
}

func (f *fakeMatches) MatchSignal(ctx context.Context, id string, data string) (string, error) {
	f.signals = append(f.signals, id+":"+data)
	if !f.live[id] {
		return "", errors.New("match not found")
	}
	return "forfeited", nil
}

type testEnv struct {
	deps     *moduleDeps
	ledger   *fakeLedger
	store    *memMatchStore
	notifier *fakeNotifier
	matches  *fakeMatches
	clock    time.Time
}

func (e *testEnv) advance(d time.Duration) {
	e.clock = e.clock.Add(d)
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	bot.SetIdentities([]bot.BotIdentity{
		{UserID: "bot-a", DisplayName: "Ada"},
		{UserID: "bot-b", DisplayName: "Bo"},
		{UserID: "bot-c", DisplayName: "Cy"},
		{UserID: "bot-d", DisplayName: "Di"},
	})

	cfg := config.Defaults()
	cfg.TurnDurationSeconds = 3
	cfg.PassDelaySeconds = 1
	cfg.BotFillDelaySeconds = 2
	cfg.BotMinDelaySeconds = 1
	cfg.BotMaxDelaySeconds = 1
	cfg.ResultLingerSeconds = 1

	tickets, err := resume.NewTicketIssuer("test-secret")
	if err != nil {
		t.Fatalf("NewTicketIssuer: %v", err)
	}

	env := &testEnv{
		ledger:   newFakeLedger(),
		store:    newMemMatchStore(),
		notifier: &fakeNotifier{},
		matches:  &fakeMatches{live: map[string]bool{}},
		clock:    time.Now().UTC().Truncate(time.Second),
	}
	writer := resume.NewAsyncWriter(env.store, nil)
	t.Cleanup(func() { _ = writer.Close(context.Background()) })

	env.deps = &moduleDeps{
		cfg:      cfg,
		svc:      app.NewService(nil),
		sched:    app.NewScheduler(),
		ledger:   env.ledger,
		store:    env.store,
		writer:   writer,
		notifier: env.notifier,
		tickets:  tickets,
		claims:   NewNakamaResumeClaims(newFakeNakama()),
		matches:  env.matches,
		now:      func() time.Time { return env.clock },
	}
	return env
}

func userCtx(userID string) context.Context {
	return context.WithValue(context.Background(), runtime.RUNTIME_CTX_USER_ID, userID)
}

func matchCtx(matchID string) context.Context {
	return context.WithValue(context.Background(), runtime.RUNTIME_CTX_MATCH_ID, matchID)
}
