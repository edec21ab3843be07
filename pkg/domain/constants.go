package domain

import "strings"

const (
	// InternalEventPrefix marks the synthesized event of an eventless transition.
	InternalEventPrefix = "__internal_transition_"

	// SubCompletedSuffix is appended to a superstate name to form the variable set
	// when its sub-machine reaches a final state.
	SubCompletedSuffix = "_sub_completed"

	// UnknownStateName is reported when no machine level is active.
	UnknownStateName = "Unknown"

	// UnknownLeafStateName is the leaf counterpart of UnknownStateName.
	UnknownLeafStateName = "UnknownLeaf"
)

// InternalEventName builds the event name used for an eventless transition.
func InternalEventName(source, target string) string {
	return InternalEventPrefix + source + "_to_" + target
}

// IsInternalEvent reports whether an event name was synthesized for an eventless transition.
func IsInternalEvent(event string) bool {
	return strings.HasPrefix(event, InternalEventPrefix)
}

// SubCompletedVariable is the variable raised in the parent when the superstate's
// sub-machine reaches a final state.
func SubCompletedVariable(superstate string) string {
	return superstate + SubCompletedSuffix
}
