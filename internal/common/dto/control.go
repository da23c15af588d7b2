package dto

// EmitFlags are the per-emit delivery modifiers.
// Compress and Binary are tri-state: nil leaves the transport default.
type EmitFlags struct {
	Volatile  bool  `json:"volatile"`
	Broadcast bool  `json:"broadcast"`
	Compress  *bool `json:"compress,omitempty"`
	Binary    *bool `json:"binary,omitempty"`
}

// EmitRequest represents the body of POST /emit
type EmitRequest struct {
	Namespace string    `json:"namespace"`
	Source    string    `json:"source,omitempty"`
	Flags     EmitFlags `json:"flags"`
	Rooms     []string  `json:"rooms"`
	Event     string    `json:"event"`
	Args      []any     `json:"args"`
}

// JoinRequest represents the body of POST /join
type JoinRequest struct {
	Namespace string   `json:"namespace"`
	Socket    string   `json:"socket"`
	Rooms     []string `json:"rooms"`
}

// LeaveRequest represents the body of DELETE /leave
type LeaveRequest struct {
	Namespace string `json:"namespace"`
	Socket    string `json:"socket"`
	Room      string `json:"room"`
}

// StatusResponse represents the body returned by GET /status
type StatusResponse struct {
	Uptime      float64     `json:"uptime"`
	MemoryUsage MemoryUsage `json:"memory_usage"`
	IO          IOStatus    `json:"io"`
}

type MemoryUsage struct {
	RSS       uint64 `json:"rss"`
	HeapTotal uint64 `json:"heapTotal"`
	HeapUsed  uint64 `json:"heapUsed"`
	External  uint64 `json:"external"`
}

type IOStatus struct {
	SubscriptionCount int      `json:"subscription_count"`
	Namespaces        []string `json:"namespaces"`
}
