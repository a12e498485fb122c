package local

import "github.com/emiago/sipgo/sip"

// PartyInfo models the caller, connected-line, redirecting, or dialed
// identity carried by an endpoint, shaped as a display-name-plus-address
// pair the way a real switch would hand a SIP From/To header across a
// Local channel boundary.
type PartyInfo struct {
	DisplayName string
	Address     sip.Uri
	Params      sip.HeaderParams
	Valid       bool
}

// empty reports whether p carries no identity at all — used by
// the splice's "swap where A has any valid field" rule in optimize-away.
func (p PartyInfo) empty() bool {
	return !p.Valid && p.DisplayName == "" && p.Address.Host == "" && p.Address.User == ""
}

// swapPartyInfo exchanges a and b in place, honoring the splice's "swap
// rather than copy" rule (§4.4 step 3): whatever the far peer held
// survives on the retiring side in case that bridge is resumed later.
func swapPartyInfo(a, b *PartyInfo) {
	*a, *b = *b, *a
}
