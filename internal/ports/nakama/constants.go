package nakama

const (
	// RpcCreateMatch debits the entry fee and creates a match for the caller.
	RpcCreateMatch = "create_match"
	// RpcResumeCheck reports whether the caller has a match to resume.
	RpcResumeCheck = "resume_check"
	// RpcResumeMatch recreates a stored match from a resume ticket.
	RpcResumeMatch = "resume_match"
	// RpcDismissResume forgets the caller's stored match.
	RpcDismissResume = "dismiss_resume"

	// MatchNameLudo is the authoritative match handler name registered with Nakama.
	MatchNameLudo = "ludo_match"
)

// Op codes for client messages and server events.
const (
	// Client -> Server
	OpRollDice    int64 = 1
	OpSelectToken int64 = 2
	OpResign      int64 = 3

	// Server -> Client events
	OpMatchState    int64 = 101
	OpDiceRolled    int64 = 102
	OpTokenMoved    int64 = 103
	OpTokenCaptured int64 = 104
	OpTurnChanged   int64 = 105
	OpTurnForfeited int64 = 106
	OpGameEnded     int64 = 107
	OpGameCancelled int64 = 108
	OpGameStarted   int64 = 109
)

// Storage collections.
const (
	matchCollection       = "ludo_matches"
	transactionCollection = "ludo_transactions"
	resumeClaimCollection = "ludo_resume_claims"
)

// Match params passed to MatchCreate.
const (
	paramOwner      = "owner_id"
	paramTier       = "tier"
	paramDifficulty = "difficulty"
	paramResume     = "resume"
)

// signalForfeit asks a running match to cancel itself.
const signalForfeit = "forfeit"
