package queryspace

// Cost constants for edges in the candidate graph, spec §4.3: "resolver
// choice edges carry a high base cost; CanProvide edges within the same
// resolver carry a low cost; Requires edges force the required fields to be
// included in any selected tree." The solver (package solve) only ever
// compares sums of these along paths from Root, so absolute magnitudes don't
// matter — only that opening a new resolver dominates staying within one
// already on the path.
const (
	// costNewResolver is paid once, the first time a given (parent node,
	// subgraph) pair is used — i.e. a new subgraph round trip.
	costNewResolver = 1000
	// costContinuation is paid per field resolved by a resolver already
	// reached on the path (no new round trip, just another selection in the
	// same subgraph request).
	costContinuation = 1
	// costStructural connects nodes that don't represent a resolving choice
	// (Field containment edges, and Provides/Requires bookkeeping edges).
	costStructural = 0
)
