package mirror

// ConnState classifies the engine's relationship to the selected context.
type ConnState int

const (
	// StateDisconnected is the initial state before any context was selected.
	StateDisconnected ConnState = iota
	// StateConnecting means a connect attempt is in flight.
	StateConnecting
	// StateConnected means the attempted context answered and is now the
	// selected context.
	StateConnected
	// StateFailed means the latest connect attempt failed terminally. The
	// attempted context stays visible so the failure can be shown next to
	// the right name.
	StateFailed
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	default:
		return "disconnected"
	}
}

// defaultNamespaces picks the initial namespace scope after a connect:
// "default" when present, otherwise the first listed namespace, otherwise an
// empty scope.
func defaultNamespaces(available []string) []string {
	for _, ns := range available {
		if ns == "default" {
			return []string{"default"}
		}
	}
	if len(available) > 0 {
		return []string{available[0]}
	}
	return []string{}
}
