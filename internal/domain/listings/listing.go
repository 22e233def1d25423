package listings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"rentcancel/internal/domain/refund"
	"rentcancel/internal/domain/shared/events"
)

var (
	ErrIDRequired    = errors.New("listings: id is required")
	ErrHostRequired  = errors.New("listings: host is required")
	ErrTitleRequired = errors.New("listings: title is required")
	ErrUnknownPolicy = errors.New("listings: unknown cancellation policy")
	ErrNotFound      = errors.New("listings: not found")
)

type ListingID string
type HostID string

type Kind string

const (
	KindStay    Kind = "stay"
	KindVehicle Kind = "vehicle"
)

// Listing is the slice of a marketplace listing that cancellation needs:
// who hosts it and which cancellation policy it advertises.
type Listing struct {
	ID    ListingID
	Host  HostID
	Title string
	Kind  Kind
	// CancellationPolicy is stored as the raw string the listing was saved
	// with. Legacy values may not name a known policy.
	CancellationPolicy string
	CreatedAt          time.Time
	UpdatedAt          time.Time
	Version            int64
	events.EventRecorder
}

type ListingRepository interface {
	ByID(ctx context.Context, id ListingID) (*Listing, error)
	Save(ctx context.Context, listing *Listing) error
}

type CreateListingParams struct {
	ID                 ListingID
	Host               HostID
	Title              string
	Kind               Kind
	CancellationPolicy string
	Now                time.Time
}

// NewListing rejects unknown policies so new data never relies on the
// calculator's moderate fallback.
func NewListing(params CreateListingParams) (*Listing, error) {
	if strings.TrimSpace(string(params.ID)) == "" {
		return nil, ErrIDRequired
	}
	if strings.TrimSpace(string(params.Host)) == "" {
		return nil, ErrHostRequired
	}
	if strings.TrimSpace(params.Title) == "" {
		return nil, ErrTitleRequired
	}
	policy, err := validatePolicy(params.CancellationPolicy)
	if err != nil {
		return nil, err
	}
	kind := params.Kind
	if kind == "" {
		kind = KindStay
	}
	now := params.Now.UTC()
	return &Listing{
		ID:                 params.ID,
		Host:               params.Host,
		Title:              strings.TrimSpace(params.Title),
		Kind:               kind,
		CancellationPolicy: string(policy),
		CreatedAt:          now,
		UpdatedAt:          now,
	}, nil
}

// Policy resolves the stored policy string for the refund calculator.
func (l *Listing) Policy() refund.Policy {
	return refund.ParsePolicy(l.CancellationPolicy)
}

func (l *Listing) ChangePolicy(raw string, now time.Time) error {
	policy, err := validatePolicy(raw)
	if err != nil {
		return err
	}
	if string(policy) == l.CancellationPolicy {
		return nil
	}
	previous := l.CancellationPolicy
	l.CancellationPolicy = string(policy)
	l.UpdatedAt = now.UTC()
	l.Record(PolicyChanged{ListingID: l.ID, From: previous, To: string(policy), At: l.UpdatedAt})
	return nil
}

func validatePolicy(raw string) (refund.Policy, error) {
	if strings.TrimSpace(raw) == "" {
		return refund.DefaultPolicy, nil
	}
	policy, ok := refund.LookupPolicy(raw)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownPolicy, raw)
	}
	return policy, nil
}
