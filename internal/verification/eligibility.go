package verification

import (
	"context"
	"fmt"

	fanentity "github.com/ovaphlow/pitchfork/service-fanscore-go/internal/fan/entity"
)

// Policy lists optional requirements a verified fan must meet.
type Policy struct {
	MinTier   *fanentity.Tier `json:"minTier,omitempty"`
	MinScore  *int            `json:"minScore,omitempty"`
	MinMonths *int            `json:"minMonths,omitempty"`
}

// Shortfall is one unmet requirement.
type Shortfall struct {
	Requirement string `json:"requirement"`
	Required    any    `json:"required"`
	Actual      any    `json:"actual"`
}

type Eligibility struct {
	Eligible bool        `json:"eligible"`
	Reason   string      `json:"reason,omitempty"`
	Unmet    []Shortfall `json:"unmet,omitempty"`
}

// CheckEligibility evaluates every requirement of pol against p. Reason
// describes the first unmet requirement; Unmet lists all of them.
func CheckEligibility(p Payload, pol Policy) Eligibility {
	var e Eligibility
	if pol.MinTier != nil && p.Tier.Compare(*pol.MinTier) < 0 {
		e.Unmet = append(e.Unmet, Shortfall{"minTier", pol.MinTier.String(), p.Tier.String()})
	}
	if pol.MinScore != nil && p.StanScore < *pol.MinScore {
		e.Unmet = append(e.Unmet, Shortfall{"minScore", *pol.MinScore, p.StanScore})
	}
	if pol.MinMonths != nil && p.RelationshipMonths < *pol.MinMonths {
		e.Unmet = append(e.Unmet, Shortfall{"minMonths", *pol.MinMonths, p.RelationshipMonths})
	}
	if len(e.Unmet) == 0 {
		e.Eligible = true
		return e
	}
	e.Reason = e.Unmet[0].message()
	return e
}

func (s Shortfall) message() string {
	switch s.Requirement {
	case "minTier":
		return fmt.Sprintf("tier %v is below the required %v", s.Actual, s.Required)
	case "minScore":
		return fmt.Sprintf("stan score %v is below the required %v", s.Actual, s.Required)
	case "minMonths":
		return fmt.Sprintf("relationship of %v months is shorter than the required %v", s.Actual, s.Required)
	}
	return s.Requirement + " not met"
}

// FanClaim is the public view of a verified payload.
type FanClaim struct {
	Tier               fanentity.Tier `json:"tier"`
	Score              int            `json:"score"`
	RelationshipMonths int            `json:"relationshipMonths"`
	Verified           bool           `json:"verified"`
}

type EventAccess struct {
	PresaleEligible bool `json:"presaleEligible"`
	PriorityLevel   int  `json:"priorityLevel"`
	MaxTickets      int  `json:"maxTickets"`
}

// EventVerification is the response of the public verification endpoint.
type EventVerification struct {
	Valid       bool         `json:"valid"`
	Status      Status       `json:"status"`
	Eligible    *bool        `json:"eligible,omitempty"`
	Reason      string       `json:"reason,omitempty"`
	Unmet       []Shortfall  `json:"unmet,omitempty"`
	Fan         *FanClaim    `json:"fan,omitempty"`
	EventAccess *EventAccess `json:"eventAccess,omitempty"`
}

const maxTicketsCap = 6

// AccessFor derives ticketing privileges from a tier.
func AccessFor(t fanentity.Tier, eligible bool) EventAccess {
	rank := t.Rank()
	return EventAccess{
		PresaleEligible: eligible && rank >= fanentity.TierEngaged.Rank(),
		PriorityLevel:   rank,
		MaxTickets:      min(2+rank, maxTicketsCap),
	}
}

// VerifyForEvent verifies a token presented at artistID's event and applies
// pol. A token of another artist is reported invalid and not counted as a use.
func (s *Service) VerifyForEvent(ctx context.Context, token, artistID string, pol Policy) (EventVerification, error) {
	res, err := s.check(ctx, token)
	if err != nil {
		return EventVerification{}, err
	}
	out := EventVerification{Valid: res.Valid, Status: res.Status}
	if !res.Valid {
		out.Reason = reasonFor(res.Status)
		return out, nil
	}
	p := res.Payload
	if artistID != "" && p.ArtistID != artistID {
		out.Valid = false
		out.Reason = "token was issued for a different artist"
		return out, nil
	}
	s.recordUsage(ctx, token)

	el := CheckEligibility(*p, pol)
	access := AccessFor(p.Tier, el.Eligible)
	out.Eligible = &el.Eligible
	out.Reason = el.Reason
	out.Unmet = el.Unmet
	out.Fan = &FanClaim{Tier: p.Tier, Score: p.StanScore, RelationshipMonths: p.RelationshipMonths, Verified: true}
	out.EventAccess = &access
	return out, nil
}

func reasonFor(st Status) string {
	switch st {
	case StatusInvalidFormat:
		return "token is malformed"
	case StatusInvalidSignature:
		return "token signature does not match"
	case StatusExpired:
		return "token has expired"
	case StatusRevoked:
		return "token has been revoked"
	case StatusNotFound:
		return "token not found"
	}
	return string(st)
}
