package realtime

// OutcomeKind classifies how an inbound message was handled
type OutcomeKind string

const (
	OutcomeApplied   OutcomeKind = "applied"
	OutcomeBroadcast OutcomeKind = "broadcast"
	OutcomeDropped   OutcomeKind = "dropped"
)

// Drop reasons
const (
	ReasonMalformed    = "malformed"
	ReasonUnknownTable = "unknown_table"
	ReasonNoTeam       = "no_team"
	ReasonNoRequest    = "no_request"
	ReasonFlood        = "flood"
	ReasonInvalid      = "invalid_value"
	ReasonWrongRoom    = "wrong_room"
	ReasonStoreError   = "store_error"
)

// Outcome is the result of handling one inbound message. Handling is
// best effort: a dropped message is reported here, not sent back to the
// client, and never closes the connection.
type Outcome struct {
	Kind   OutcomeKind
	Reason string
	Err    error
}

// Applied reports a persisted change
func Applied() Outcome {
	return Outcome{Kind: OutcomeApplied}
}

// Broadcasted reports a message fanned out to the room
func Broadcasted() Outcome {
	return Outcome{Kind: OutcomeBroadcast}
}

// Dropped reports a message that had no effect
func Dropped(reason string, err error) Outcome {
	return Outcome{Kind: OutcomeDropped, Reason: reason, Err: err}
}
