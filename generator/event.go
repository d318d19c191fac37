package generator

// Event is a pending condition ProcessStep should act on, beyond what the
// step itself reports. It applies to the step that call processes, i.e.
// the one fed to the previous ProcessStep call.
type Event int

const (
	// EventReSync signals the host's resync counter reached its
	// threshold: the generator should flush pending branches ahead of an
	// upcoming synchronization.
	EventReSync Event = iota
	// EventNotify signals a trigger requested an observation point at
	// this step.
	EventNotify
)
