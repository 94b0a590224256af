package config

// this holds the resolved configuration values from CLI
//
//nolint:lll // readablity
var (
	DB                 string // connection string for the database
	NatsURL            string // URL of the NATS server (empty: no notifications)
	WaitForServices    string // duration to wait for other services to be ready
	LogLevel           string // sets the log level (zap log level values)
	SQLLogLevel        string // sets the log level for sql subsystem
	LogFormat          string // text vs json
	LogFilter          string // zapfilter rules, e.g. "debug+:processing.* info+:*"
	MigrationSourceURL string // location of migration files (empty: embedded)
	EnableTelemetry    bool   // enable telemetry
	TelemetryEndpoint  string // endpoint for telemetry (stdout writes to console)
	ProfilingPort      int    // port for profiling
	Addr               string // listen addr for the HTTP server
	AdminToken         string // token for admin access
	RecomputeWorkers   int    // max number of series recomputed in parallel
	SystemCacheTTL     string // how long loaded scoring systems are cached
	EagerRecompute     bool   // recompute series right after a change notification
	KVBucket           string // JetStream KV bucket for standing summaries
	TLSCertFile        string // path to TLS certificate
	TLSKeyFile         string // path to TLS key
)
