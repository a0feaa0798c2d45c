package dsmesock

import (
	"github.com/dsmed/dsmed/internal/bus"
	"github.com/dsmed/dsmed/internal/logger"
)

// Intercepted reports whether a frame was fully handled inline and
// should not be queued for normal handler-table dispatch.
type Intercepted bool

// HandleInline implements the core's special-cased message handling,
// applied to every frame before it is ever queued for normal
// dispatch: a PROCESSWD_PING arriving over the client socket gets an
// immediate PROCESSWD_PONG reply and is never queued; the four
// logging-control messages are applied directly to the logger rather
// than being delivered to any module's handler table.
func HandleInline(conn *Conn, f Frame, ruleLogger *logger.RuleSet, verbosity func(logger.Priority)) Intercepted {
	switch f.Type {
	case bus.TypeProcesswdPing:
		_ = conn.Send(bus.New(bus.TypeProcesswdPong, nil, 0), nil)
		return true

	case bus.TypeClose:
		_ = conn.Close()
		return true

	case bus.TypeAddLoggingInclude:
		ruleLogger.AddInclude(string(f.Payload))
		return true

	case bus.TypeAddLoggingExclude:
		ruleLogger.AddExclude(string(f.Payload))
		return true

	case bus.TypeUseLoggingDefaults:
		ruleLogger.UseDefaults()
		return true

	case bus.TypeSetLoggingVerbosity:
		if len(f.Payload) >= 1 && verbosity != nil {
			verbosity(logger.Priority(f.Payload[0]))
		}
		return true

	default:
		return false
	}
}
