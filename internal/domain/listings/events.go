package listings

import "time"

type PolicyChanged struct {
	ListingID ListingID
	From      string
	To        string
	At        time.Time
}

func (e PolicyChanged) EventName() string     { return "listing.policy_changed" }
func (e PolicyChanged) AggregateID() string   { return string(e.ListingID) }
func (e PolicyChanged) OccurredAt() time.Time { return e.At }
