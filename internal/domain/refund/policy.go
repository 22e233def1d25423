package refund

import "strings"

// Policy is the cancellation policy a listing advertises to guests.
type Policy string

const (
	PolicyFlexible       Policy = "flexible"
	PolicyModerate       Policy = "moderate"
	PolicyStrict         Policy = "strict"
	PolicyStrictLongTerm Policy = "strict_long_term"
	PolicySuperStrict    Policy = "super_strict"
	PolicyNonRefundable  Policy = "non_refundable"
)

// DefaultPolicy is applied whenever a stored policy string is not recognised.
const DefaultPolicy = PolicyModerate

var knownPolicies = map[Policy]struct{}{
	PolicyFlexible:       {},
	PolicyModerate:       {},
	PolicyStrict:         {},
	PolicyStrictLongTerm: {},
	PolicySuperStrict:    {},
	PolicyNonRefundable:  {},
}

// Policies lists every supported policy in display order.
func Policies() []Policy {
	return []Policy{
		PolicyFlexible,
		PolicyModerate,
		PolicyStrict,
		PolicyStrictLongTerm,
		PolicySuperStrict,
		PolicyNonRefundable,
	}
}

// LookupPolicy normalises raw and reports whether it names a known policy.
func LookupPolicy(raw string) (Policy, bool) {
	p := Policy(strings.ToLower(strings.TrimSpace(raw)))
	_, ok := knownPolicies[p]
	return p, ok
}

// ParsePolicy never fails: unknown or empty strings resolve to DefaultPolicy.
func ParsePolicy(raw string) Policy {
	if p, ok := LookupPolicy(raw); ok {
		return p
	}
	return DefaultPolicy
}

func (p Policy) Valid() bool {
	_, ok := knownPolicies[p]
	return ok
}

func (p Policy) String() string {
	return string(p)
}

// Party identifies who initiated the cancellation.
type Party string

const (
	PartyGuest Party = "guest"
	PartyHost  Party = "host"
)
