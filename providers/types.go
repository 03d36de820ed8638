// Package providers holds the types shared by the outbound provider clients.
package providers

// Model is a normalized entry from a provider's model catalog.
type Model struct {
	ID      string `json:"id"`
	Created int64  `json:"created"`
	OwnedBy string `json:"ownedBy"`
}
