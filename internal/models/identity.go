package models

// Identity is what CAPI says about the account behind a token.
type Identity struct {
	CustomerID    string
	CommanderName string
	CarrierName   string
	CarrierID     string

	// Payloads holds the raw resources fetched while resolving the identity.
	Payloads map[Resource][]byte
}
