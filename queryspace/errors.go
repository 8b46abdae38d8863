package queryspace

import "fmt"

// UnplannableField is returned when a client-selected field has no
// admissible resolver anywhere in the supergraph — spec §4.3 edge case:
// "a field with zero admissible resolvers fails query-space construction
// outright, before the solver ever runs."
type UnplannableField struct {
	ParentType string
	Field      string
	Reason     string
}

func (e *UnplannableField) Error() string {
	return fmt.Sprintf("field %s.%s is not resolvable by any subgraph: %s", e.ParentType, e.Field, e.Reason)
}
