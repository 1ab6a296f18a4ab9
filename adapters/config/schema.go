package config

// File represents the structure of an orchestrator configuration file.
// Durations are Go duration strings ("250ms", "1m30s"). Omitted fields keep
// their defaults.
type File struct {
	MaxCacheSize     *int     `yaml:"max_cache_size"`
	DefaultTTL       string   `yaml:"default_ttl"`
	CleanupInterval  string   `yaml:"cleanup_interval"`
	MaxConcurrency   *int     `yaml:"max_concurrency"`
	MaxRetries       *int     `yaml:"max_retries"`
	BackoffBase      *float64 `yaml:"backoff_base"`
	BackoffCap       string   `yaml:"backoff_cap"`
	AttemptTimeout   string   `yaml:"attempt_timeout"`
	OverallDeadline  string   `yaml:"overall_deadline"`
	PerKindWorkers   *int     `yaml:"per_kind_worker_count"`
	QueuePollTimeout string   `yaml:"queue_poll_timeout"`
}
