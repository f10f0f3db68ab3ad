package domain

// SeatColors returns the colors handed out for a player count. Two players
// sit on opposite corners.
func SeatColors(playerCount int) []Color {
	switch playerCount {
	case 2:
		return []Color{ColorRed, ColorYellow}
	case 3:
		return []Color{ColorRed, ColorGreen, ColorYellow}
	default:
		return []Color{ColorRed, ColorGreen, ColorYellow, ColorBlue}
	}
}

// Progress is the board progress of a player: the sum of its token positions.
func Progress(p *Player) int {
	if p == nil {
		return 0
	}
	total := 0
	for _, t := range p.Tokens {
		total += t.Position
	}
	return total
}

// TokenCoord returns the absolute cell of a token, if it is on the shared track.
func TokenCoord(p *Player, tokenID int) (Coord, bool) {
	if p == nil || tokenID < 0 || tokenID >= TokensPerPlayer {
		return Coord{}, false
	}
	c, err := BoardCoord(p.Tokens[tokenID].Position, p.Color)
	if err != nil {
		return Coord{}, false
	}
	return c, true
}

// RingDistance is how many cells forward a token at index from must travel
// to reach index to on the shared ring.
func RingDistance(from, to int) int {
	return ((to-from)%RingSize + RingSize) % RingSize
}
