package logic

// Classifier decides whether a raw source state means the device is on.
type Classifier struct {
	onStates  map[string]struct{}
	predicate func(state string) bool
}

// NewClassifier builds a classifier from an allow-list of raw states. When
// predicate is non-nil it overrides the allow-list entirely. An empty
// allow-list falls back to DefaultOnStates.
func NewClassifier(onStates []string, predicate func(state string) bool) Classifier {
	if len(onStates) == 0 {
		onStates = DefaultOnStates
	}
	set := make(map[string]struct{}, len(onStates))
	for _, s := range onStates {
		set[s] = struct{}{}
	}
	return Classifier{onStates: set, predicate: predicate}
}

// IsOn classifies state. Unrecognised states are off.
func (c Classifier) IsOn(state string) bool {
	if c.predicate != nil {
		return c.predicate(state)
	}
	_, ok := c.onStates[state]
	return ok
}

// TransitionTracker is the on/off bookkeeping shared by every strategy.
// It is a value: methods return the updated tracker instead of mutating it.
type TransitionTracker struct {
	Classifier Classifier
	// LastOn is the most recently processed classified value.
	LastOn bool
}

// Startup classifies the current raw state with no prior state to compare.
func (t TransitionTracker) Startup(state string) (TransitionTracker, bool) {
	t.LastOn = t.Classifier.IsOn(state)
	return t, t.LastOn
}

// Transition classifies a raw state change. changed is false when both raw
// states map to the same value, or when the new value was already processed.
func (t TransitionTracker) Transition(oldState, newState string) (next TransitionTracker, on, changed bool) {
	oldOn := t.Classifier.IsOn(oldState)
	newOn := t.Classifier.IsOn(newState)
	if oldOn == newOn || newOn == t.LastOn {
		return t, newOn, false
	}
	t.LastOn = newOn
	return t, newOn, true
}
