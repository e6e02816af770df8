package multitable

// Storage selects the destination database.
type Storage struct {
	// Kind is a registered storage backend: "postgres" | "mssql" | "mysql" | "sqlite".
	Kind string `json:"kind"`
	DSN  string `json:"dsn"`
}

// RuntimeConfig controls load execution.
type RuntimeConfig struct {
	// LoaderWorkers bounds how many tables load concurrently within a pass.
	LoaderWorkers int `json:"loader_workers"`
	// BatchSize is the number of rows handed to one InsertRows call.
	BatchSize int `json:"batch_size"`
	// MaxVarchar caps inferred text column widths.
	MaxVarchar int `json:"max_varchar"`
	// DebugTimings logs the duration of every insert batch.
	DebugTimings bool `json:"debug_timings"`
}

const (
	defaultLoaderWorkers = 4
	defaultBatchSize     = 5000
)

func (r RuntimeConfig) withDefaults() RuntimeConfig {
	if r.LoaderWorkers <= 0 {
		r.LoaderWorkers = defaultLoaderWorkers
	}
	if r.BatchSize <= 0 {
		r.BatchSize = defaultBatchSize
	}
	return r
}

// LoadConfig is everything Runner needs besides the tables themselves.
type LoadConfig struct {
	Job     string        `json:"job"`
	Storage Storage       `json:"storage"`
	Runtime RuntimeConfig `json:"runtime"`
}
