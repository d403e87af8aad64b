package cnst

const (
	// AppName is the name used in logs and the version output
	AppName = "oscbridge"
	// CommandName is the name of the CLI binary
	CommandName = "oscbridge"
)

const (
	// BridgeYaml is the default configuration file name
	BridgeYaml = "oscbridge.yaml"
	// BridgePID is the default pid file name
	BridgePID = "oscbridge.pid"
	// LogFileName is the log file written next to the configuration file
	LogFileName = "output.log"
)

const (
	RedisClusterTypeSentinel = "sentinel"
	RedisClusterTypeCluster  = "cluster"
	RedisClusterTypeSingle   = "single"
)
