package cnst

const (
	AppName     = "boom"
	CommandName = "boom"
)

const (
	// BoomYaml is the default configuration file name
	BoomYaml = "boom.yaml"
)

// RootNamespace is always registered on the realtime server
const RootNamespace = "/"
