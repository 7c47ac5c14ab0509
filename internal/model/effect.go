package model

// EffectKind names the declarative action effects of spec.md §4.5.
type EffectKind string

const (
	SendToEffect     EffectKind = "sendTo"
	SendParentEffect EffectKind = "sendParent"
)

// Effect is a declarative request an action returns for C5 to carry out
// after the macro-step's exit/transition/entry actions have all run
// (spec.md §4.5 "Effect descriptors ... handled by C5 after step 9").
type Effect struct {
	Kind     EffectKind
	TargetID string // set for SendToEffect
	Event    Event
}

// SendTo builds a sendTo(actorId, event) effect descriptor.
func SendTo(targetID string, event Event) Effect {
	return Effect{Kind: SendToEffect, TargetID: targetID, Event: event}
}

// SendParent builds a sendParent(event) effect descriptor.
func SendParent(event Event) Effect {
	return Effect{Kind: SendParentEffect, Event: event}
}
