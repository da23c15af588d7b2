package cnst

import "errors"

var (
	// ErrNamespaceNotFound is returned when a namespace is not registered
	ErrNamespaceNotFound = errors.New("namespace not found")
	// ErrSocketNotFound is returned when a socket id is not connected to a namespace
	ErrSocketNotFound = errors.New("socket not found")
	// ErrSocketClosed is returned when writing to a disconnected socket
	ErrSocketClosed = errors.New("socket closed")
	// ErrInvalidStoreType is returned for an unknown session store backend
	ErrInvalidStoreType = errors.New("invalid session store type")
	// ErrInvalidDatabaseType is returned for an unknown relational backend
	ErrInvalidDatabaseType = errors.New("invalid database type")
	// ErrMissingTLSPaths is returned when secure mode lacks certificate paths
	ErrMissingTLSPaths = errors.New("ssl paths are missing in server config")
	// ErrSessionNotFound is returned by a session store for an unknown id
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionExists is returned by a session store when creating a duplicate id
	ErrSessionExists = errors.New("session already exists")
	// ErrEmptyRoom is returned when joining or leaving a room without a name
	ErrEmptyRoom = errors.New("room name cannot be empty")
	// ErrReservedEvent is returned when a client sends an event that would be
	// relayed to a lifecycle route
	ErrReservedEvent = errors.New("reserved event name")
)
