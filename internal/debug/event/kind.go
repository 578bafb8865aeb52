package event

// Kind identifies what occurred on the remote side.
type Kind int

const (
	// Unknown is any kind this client does not recognize.
	Unknown Kind = iota
	// VMStart is reported once when the debuggee begins executing.
	VMStart
	// VMDeath is reported when the debuggee terminates.
	VMDeath
	// VMDisconnect is reported when the connection to the debuggee ends.
	VMDisconnect
	// Breakpoint is reported when a thread hits a breakpoint location.
	Breakpoint
	// Step is reported when a step request completes.
	Step
	// AccessWatchpoint is reported when a watched field is read.
	AccessWatchpoint
	// ModificationWatchpoint is reported when a watched field is written.
	ModificationWatchpoint
	// MethodEntry is reported when a thread enters a method.
	MethodEntry
	// MethodExit is reported when a thread leaves a method.
	MethodExit
	// Exception is reported when an exception is thrown.
	Exception
	// ThreadStart is reported when a thread starts.
	ThreadStart
	// ThreadDeath is reported when a thread ends.
	ThreadDeath
	// ClassPrepare is reported when a class is loaded and prepared.
	ClassPrepare
)

var kindNames = map[Kind]string{
	Unknown:                "unknown",
	VMStart:                "vmStart",
	VMDeath:                "vmDeath",
	VMDisconnect:           "vmDisconnect",
	Breakpoint:             "breakpoint",
	Step:                   "step",
	AccessWatchpoint:       "accessWatchpoint",
	ModificationWatchpoint: "modificationWatchpoint",
	MethodEntry:            "methodEntry",
	MethodExit:             "methodExit",
	Exception:              "exception",
	ThreadStart:            "threadStart",
	ThreadDeath:            "threadDeath",
	ClassPrepare:           "classPrepare",
}

var kindByName = func() map[string]Kind {
	m := make(map[string]Kind, len(kindNames))
	for k, name := range kindNames {
		m[name] = k
	}
	return m
}()

// String returns the wire name of the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// ParseKind maps a wire name to a Kind. Unrecognized names map to Unknown.
func ParseKind(name string) Kind {
	if k, ok := kindByName[name]; ok {
		return k
	}
	return Unknown
}

// IsLifecycle reports whether the kind describes the debuggee as a whole.
func (k Kind) IsLifecycle() bool {
	return k == VMStart || k == VMDeath || k == VMDisconnect
}

// SuspendPolicy describes which threads the remote side suspended when it
// reported a group.
type SuspendPolicy int

const (
	// SuspendNone means nothing was suspended.
	SuspendNone SuspendPolicy = iota
	// SuspendThread means only the event thread was suspended.
	SuspendThread
	// SuspendAll means every thread was suspended.
	SuspendAll
)

// String returns the wire name of the policy.
func (p SuspendPolicy) String() string {
	switch p {
	case SuspendNone:
		return "none"
	case SuspendThread:
		return "thread"
	case SuspendAll:
		return "all"
	default:
		return "unknown"
	}
}

// ParseSuspendPolicy maps a wire name to a policy. Empty or unknown names
// map to SuspendAll, the protocol default.
func ParseSuspendPolicy(name string) SuspendPolicy {
	switch name {
	case "none":
		return SuspendNone
	case "thread":
		return SuspendThread
	default:
		return SuspendAll
	}
}
