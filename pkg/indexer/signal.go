// Package indexer implements the asynchronous, per-collection label
// indexer described in spec §4.3: a supervisor owning one worker per known
// collection, routing Watch/Unwatch/Rebuild/Shutdown signals, and the
// worker itself, which mirrors a collection's metadata mutations into its
// forward/reverse label indices.
package indexer

// SignalKind distinguishes the four signals the supervisor understands
// (spec §4.3).
type SignalKind int

const (
	Watch SignalKind = iota
	Unwatch
	Rebuild
	Shutdown
)

func (k SignalKind) String() string {
	switch k {
	case Watch:
		return "watch"
	case Unwatch:
		return "unwatch"
	case Rebuild:
		return "rebuild"
	case Shutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// Signal is sent on the Backend's signal channel to control the indexer
// supervisor. Collection is empty for Shutdown.
type Signal struct {
	Kind       SignalKind
	Collection string
}

// WatchSignal builds a Watch(collection) signal.
func WatchSignal(collection string) Signal { return Signal{Kind: Watch, Collection: collection} }

// UnwatchSignal builds an Unwatch(collection) signal.
func UnwatchSignal(collection string) Signal { return Signal{Kind: Unwatch, Collection: collection} }

// RebuildSignal builds a Rebuild(collection) signal. The supervisor only
// logs a warning for it; no worker receives it and nothing is rebuilt.
func RebuildSignal(collection string) Signal { return Signal{Kind: Rebuild, Collection: collection} }

// ShutdownSignal builds the Shutdown signal.
func ShutdownSignal() Signal { return Signal{Kind: Shutdown} }
