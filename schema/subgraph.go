package schema

import "time"

// RetryPolicy controls transport-failure retry behavior for a subgraph,
// per spec §4.6.
type RetryPolicy struct {
	Enabled         bool
	MinPerSecond    float64       // floor: never throttle below this retry rate
	TTL             time.Duration // window over which retry budget is tracked
	RetryPercentage float64       // fraction of observed traffic eligible for retry
	RetryMutations  bool
}

// HeaderRule describes one rule for forwarding, renaming, or injecting an
// HTTP header on a subgraph request.
type HeaderRule struct {
	Name      StringID
	Rename    StringID // zero StringID(0) interned as "" when not renaming
	Forward   bool
	SetValue  string
	SetValueIsSet bool
}

// Subgraph is one GraphQL (or extension) service owning a slice of the
// supergraph.
type Subgraph struct {
	Name        StringID
	URL         URLID
	WebsocketURL URLID
	IsVirtual   bool // extension subgraphs have no network transport
	Headers     []HeaderRule
	Timeout     time.Duration
	Retry       RetryPolicy
}

// SubgraphConfig is what the external configuration collaborator supplies
// per subgraph; Schema.Build consumes a slice of these alongside the SDL.
// This is intentionally a plain struct with no parsing logic: reading
// config files is a non-goal (spec §1).
type SubgraphConfig struct {
	Name         string
	URL          string
	WebsocketURL string
	IsVirtual    bool
	Headers      []HeaderRule
	Timeout      time.Duration
	Retry        RetryPolicy
}

// EntityKey is a (subgraph, type, FieldSet) triple: the fields that let the
// gateway "jump" from one subgraph's representation of an entity to
// another subgraph that also declares an `@key` on the same field set.
type EntityKey struct {
	Subgraph SubgraphID
	Type     TypeID
	Fields   FieldSetID
}
