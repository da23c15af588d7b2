package cnst

// Reserved lifecycle event names relayed to the application
const (
	EventConnect       = "connect"
	EventDisconnect    = "disconnect"
	EventDisconnecting = "disconnecting"
	EventError         = "error"
)

// Disconnect reasons
const (
	ReasonClientDisconnect = "client namespace disconnect"
	ReasonServerDisconnect = "server namespace disconnect"
	ReasonServerShutdown   = "server shutting down"
	ReasonTransportClose   = "transport close"
	ReasonTransportError   = "transport error"
	ReasonPingTimeout      = "ping timeout"
)
