package origin

import "encoding/json"

// Kind tags the variant held by an Outcome.
type Kind int

const (
	// Found means the origin returned a payload.
	Found Kind = iota + 1

	// NotFound means the origin confirmed the resource does not exist.
	NotFound

	// TransportFailure means the call failed; see Outcome.Err.
	TransportFailure
)

// String returns the metric/log label of the kind.
func (k Kind) String() string {
	switch k {
	case Found:
		return "found"
	case NotFound:
		return "not_found"
	case TransportFailure:
		return "error"
	default:
		return "unknown"
	}
}

// Outcome is the result of an origin fetch.
// Exactly one of Payload (Found) or Err (TransportFailure) is set;
// NotFound carries neither.
type Outcome struct {
	Kind    Kind
	Payload json.RawMessage
	Err     *TransportError
}

// FoundOutcome builds a Found outcome.
func FoundOutcome(payload json.RawMessage) Outcome {
	return Outcome{Kind: Found, Payload: payload}
}

// NotFoundOutcome builds a NotFound outcome.
func NotFoundOutcome() Outcome {
	return Outcome{Kind: NotFound}
}

// FailureOutcome builds a TransportFailure outcome.
func FailureOutcome(err *TransportError) Outcome {
	return Outcome{Kind: TransportFailure, Err: err}
}
