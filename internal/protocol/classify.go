package protocol

import "strings"

const (
	PrefixSync = "SYNC_"
	PrefixRes  = "RES_"
	PrefixEvnt = "EVNT_"
	PrefixHost = "HOST_"
)

// Kind is the relay class of an inbound frame name.
type Kind int

const (
	KindUnknown Kind = iota
	// KindSync frames are requests for the host, sent by anyone.
	KindSync
	// KindRes frames are host answers; guests may not send them.
	KindRes
	// KindEvnt frames are notifications any member may send.
	KindEvnt
)

func (k Kind) String() string {
	switch k {
	case KindSync:
		return "sync"
	case KindRes:
		return "res"
	case KindEvnt:
		return "evnt"
	default:
		return "unknown"
	}
}

// Classify maps a frame name to its relay class by prefix.
func Classify(name string) Kind {
	switch {
	case strings.HasPrefix(name, PrefixSync):
		return KindSync
	case strings.HasPrefix(name, PrefixRes):
		return KindRes
	case strings.HasPrefix(name, PrefixEvnt):
		return KindEvnt
	default:
		return KindUnknown
	}
}

// HostName is the name a SYNC_* frame is relayed under.
func HostName(name string) string {
	return PrefixHost + name
}
