package types

// Event represents a typed event emitted during state transitions. Attributes
// carry the operation kind, the ids and actors involved and any resulting
// amounts; downstream systems (oracles, indexers, UIs) learn about state
// changes exclusively through these records.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}
