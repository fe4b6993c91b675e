// Package attribution maps a decoded message to the company it belongs to,
// using the sender and recipient domains and the operator's own domains.
package attribution

import "strings"

// UnknownCompany is the key used when no counterparty can be determined.
const UnknownCompany = "Unbekannt"

// Attribute classifies a message as incoming or outgoing and returns the
// owning company key. A sender whose domain matches one of the home domains
// wrote an outgoing reply, so the company is the first recipient's domain.
// Otherwise the sender's own domain is the company. Outgoing mail with
// several recipients always takes the first one; a broadcast to multiple
// customers is attributed to whoever is listed first.
func Attribute(from string, recipients []string, homeDomains []string) string {
	if from == "" {
		return UnknownCompany
	}
	fromDomain := Domain(from)

	for _, home := range homeDomains {
		if strings.HasSuffix(fromDomain, strings.ToLower(home)) {
			if len(recipients) > 0 {
				return Domain(recipients[0])
			}
			return UnknownCompany
		}
	}
	return fromDomain
}

// Domain returns the lower-cased part after the last "@". An address
// without "@" is returned as-is, lower-cased.
func Domain(addr string) string {
	if i := strings.LastIndex(addr, "@"); i >= 0 {
		addr = addr[i+1:]
	}
	return strings.ToLower(addr)
}

// SafeKey turns a company key into a filesystem-safe file stem by
// replacing "." and "@" with "_".
func SafeKey(company string) string {
	company = strings.ReplaceAll(company, ".", "_")
	return strings.ReplaceAll(company, "@", "_")
}
