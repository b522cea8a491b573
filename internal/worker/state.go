package worker

// State is a step of the per-worker state machine:
//
//	Init -> Authenticating -> (Failed | Ready)
//	Ready -> ProcessingItem -> ExtractingPage -> [Harvesting] -> ItemComplete
//	ItemComplete -> ProcessingItem | Done
type State string

const (
	StateInit           State = "init"
	StateAuthenticating State = "authenticating"
	StateReady          State = "ready"
	StateProcessingItem State = "processing_item"
	StateExtractingPage State = "extracting_page"
	StateHarvesting     State = "harvesting"
	StateItemComplete   State = "item_complete"
	StateDone           State = "done"
	StateFailed         State = "failed"
)

var transitions = map[State][]State{
	StateInit:           {StateAuthenticating, StateFailed},
	StateAuthenticating: {StateReady, StateFailed},
	StateReady:          {StateProcessingItem, StateDone, StateFailed},
	StateProcessingItem: {StateExtractingPage, StateItemComplete, StateFailed},
	StateExtractingPage: {StateHarvesting, StateItemComplete, StateFailed},
	StateHarvesting:     {StateItemComplete, StateFailed},
	StateItemComplete:   {StateProcessingItem, StateDone, StateFailed},
}

// CanTransition reports whether from -> to is a legal step.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
