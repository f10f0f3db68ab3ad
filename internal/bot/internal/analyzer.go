package internal

import (
	"ludo/internal/domain"
)

// Candidate is a token that passes the movable filter, with its landing cell.
type Candidate struct {
	TokenID int
	From    int
	To      int

	// OnTrack is true when To lies on the shared track (1..51).
	OnTrack bool
	Landing domain.Coord
	Ring    int
	Safe    bool
}

// Victim is an opponent token that a candidate would capture.
type Victim struct {
	Seat     int
	TokenID  int
	IsBot    bool
	Progress int
}

// Candidates lists movable tokens in token-id order.
func Candidates(p *domain.Player, dice int) []Candidate {
	var out []Candidate
	for _, id := range domain.MovableTokens(p, dice) {
		from := p.Tokens[id].Position
		to := domain.EntryPosition
		if from != domain.BasePosition {
			to = from + dice
		}
		c := Candidate{TokenID: id, From: from, To: to}
		if coord, err := domain.BoardCoord(to, p.Color); err == nil {
			c.OnTrack = true
			c.Landing = coord
			c.Ring, _ = domain.RingIndex(to, p.Color)
			c.Safe = domain.IsSafe(coord)
		}
		out = append(out, c)
	}
	return out
}

// Victims returns the opponent tokens sitting on the candidate's landing
// cell, if that cell allows captures.
func Victims(c Candidate, mover *domain.Player, players []*domain.Player) []Victim {
	if !c.OnTrack || c.Safe {
		return nil
	}
	var out []Victim
	forEachOpponentToken(mover, players, func(opp *domain.Player, tokenID, pos, ring int) {
		if ring == c.Ring {
			out = append(out, Victim{Seat: opp.Seat, TokenID: tokenID, IsBot: opp.IsBot, Progress: pos})
		}
	})
	return out
}

// Pressures reports whether the candidate lands on an unsafe cell one to six
// cells ahead of a human token, blocking the path it still has to travel on
// its own main track.
func Pressures(c Candidate, mover *domain.Player, players []*domain.Player) bool {
	return humanInReach(c, mover, players)
}

// Threatened reports whether a human token could land on the candidate's
// cell with a single roll of 1..6 while the cell allows captures.
func Threatened(c Candidate, mover *domain.Player, players []*domain.Player) bool {
	return humanInReach(c, mover, players)
}

// humanInReach reports whether some human token sits one to six cells behind
// the candidate's unsafe landing cell and can still get there on its own
// main track.
func humanInReach(c Candidate, mover *domain.Player, players []*domain.Player) bool {
	if !c.OnTrack || c.Safe {
		return false
	}
	hit := false
	forEachOpponentToken(mover, players, func(opp *domain.Player, tokenID, pos, ring int) {
		if hit || opp.IsBot {
			return
		}
		d := domain.RingDistance(ring, c.Ring)
		if d >= 1 && d <= 6 && pos+d <= domain.MainTrackEnd {
			hit = true
		}
	})
	return hit
}

// forEachOpponentToken visits every opponent token on the shared track.
func forEachOpponentToken(mover *domain.Player, players []*domain.Player, fn func(opp *domain.Player, tokenID, pos, ring int)) {
	for _, opp := range players {
		if opp == nil || opp.Seat == mover.Seat {
			continue
		}
		for _, t := range opp.Tokens {
			ring, err := domain.RingIndex(t.Position, opp.Color)
			if err != nil {
				continue
			}
			fn(opp, t.ID, t.Position, ring)
		}
	}
}
