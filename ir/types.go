// Package ir implements a small single-block dataflow intermediate
// representation: Operations producing Values, organized into Functions
// held by a Module. It exposes exactly the narrow surface the
// devicecluster package needs (see devicecluster's doc comment), not a
// general-purpose compiler IR.
package ir

// Type is an opaque domain tag attached to a Value, analogous to a
// shape/dtype pair in a tensor IR but deliberately left unopinionated:
// this package never inspects Type, it only carries it through cloning.
type Type struct {
	Name string
}

func (t Type) String() string {
	if t.Name == "" {
		return "<unknown>"
	}
	return t.Name
}
