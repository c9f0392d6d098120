package domain

// AmbiguityWarning flags a turn where the two best candidates came from
// different domains with nearly identical scores.
type AmbiguityWarning struct {
	First        string
	FirstDomain  string
	Second       string
	SecondDomain string
	Gap          float64
}

// RouteResult is the tool subset exposed to the model for one turn.
// Degraded means ranking was unavailable and the result holds every
// permitted tool instead.
type RouteResult struct {
	Tools     []ToolDescriptor
	Degraded  bool
	Ambiguity *AmbiguityWarning
}

// Names returns the tool names in exposure order.
func (r RouteResult) Names() []string {
	out := make([]string, len(r.Tools))
	for i, t := range r.Tools {
		out[i] = t.Name
	}
	return out
}
