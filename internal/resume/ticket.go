package resume

import (
	"errors"
	"fmt"
	"time"

	"github.com/form3tech-oss/jwt-go"
	"github.com/google/uuid"
)

const ticketIssuer = "ludo-resume"

// ErrInvalidTicket is returned for tickets that fail signature, expiry or
// subject checks.
var ErrInvalidTicket = errors.New("invalid resume ticket")

type ticketClaims struct {
	MatchID string `json:"mid"`
	jwt.StandardClaims
}

// Ticket is what a valid resume ticket grants.
type Ticket struct {
	ID      string
	UserID  string
	MatchID string
	Expires time.Time
}

// TicketIssuer signs short-lived tickets that let the owner of a stored
// match resume it.
type TicketIssuer struct {
	secret []byte
}

// NewTicketIssuer creates an issuer. The secret must not be empty.
func NewTicketIssuer(secret string) (*TicketIssuer, error) {
	if secret == "" {
		return nil, fmt.Errorf("resume secret is required")
	}
	return &TicketIssuer{secret: []byte(secret)}, nil
}

// Issue signs a ticket for r that expires when its resume window closes.
func (i *TicketIssuer) Issue(r Record, window time.Duration) (string, error) {
	claims := ticketClaims{
		MatchID: r.MatchID,
		StandardClaims: jwt.StandardClaims{
			Id:        uuid.NewString(),
			Issuer:    ticketIssuer,
			Subject:   r.OwnerID,
			IssuedAt:  time.Now().Unix(),
			ExpiresAt: r.Expires(window).Unix(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.secret)
}

// Verify checks the ticket against the caller.
func (i *TicketIssuer) Verify(raw, userID string) (Ticket, error) {
	claims := &ticketClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil {
		return Ticket{}, fmt.Errorf("%w: %v", ErrInvalidTicket, err)
	}
	if claims.Issuer != ticketIssuer || claims.Subject != userID || claims.MatchID == "" {
		return Ticket{}, ErrInvalidTicket
	}
	return Ticket{
		ID:      claims.Id,
		UserID:  claims.Subject,
		MatchID: claims.MatchID,
		Expires: time.Unix(claims.ExpiresAt, 0),
	}, nil
}
