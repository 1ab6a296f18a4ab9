// Package config loads the Options struct from a YAML file. The file is the
// only external input; nothing is read from the environment.
package config

import (
	"errors"
	"os"
	"time"

	"go.trai.ch/fanout"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

var (
	// ErrConfigReadFailed is returned when the config file cannot be read.
	ErrConfigReadFailed = errors.New("failed to read config file")

	// ErrConfigParseFailed is returned when the config file cannot be parsed.
	ErrConfigParseFailed = errors.New("failed to parse config file")

	// ErrInvalidDuration is returned when a duration field cannot be parsed.
	ErrInvalidDuration = errors.New("invalid duration")
)

// Load reads a YAML file and overlays it on the defaults. The result is
// validated before being returned.
func Load(path string) (fanout.Options, error) {
	opts := fanout.DefaultOptions()

	raw, err := os.ReadFile(path)
	if err != nil {
		return opts, zerr.With(zerr.Wrap(err, ErrConfigReadFailed.Error()), "path", path)
	}

	var file File
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return opts, zerr.With(zerr.Wrap(err, ErrConfigParseFailed.Error()), "path", path)
	}

	if err := apply(&opts, file); err != nil {
		return opts, err
	}
	if err := opts.Validate(); err != nil {
		return opts, err
	}
	return opts, nil
}

func apply(opts *fanout.Options, file File) error {
	if file.MaxCacheSize != nil {
		opts.MaxCacheSize = *file.MaxCacheSize
	}
	if file.MaxConcurrency != nil {
		opts.MaxConcurrency = *file.MaxConcurrency
	}
	if file.MaxRetries != nil {
		opts.MaxRetries = *file.MaxRetries
	}
	if file.BackoffBase != nil {
		opts.BackoffBase = *file.BackoffBase
	}
	if file.PerKindWorkers != nil {
		opts.PerKindWorkers = *file.PerKindWorkers
	}

	durations := []struct {
		raw   string
		field string
		dst   *time.Duration
	}{
		{file.DefaultTTL, "default_ttl", &opts.DefaultTTL},
		{file.CleanupInterval, "cleanup_interval", &opts.CleanupInterval},
		{file.BackoffCap, "backoff_cap", &opts.BackoffCap},
		{file.AttemptTimeout, "attempt_timeout", &opts.AttemptTimeout},
		{file.OverallDeadline, "overall_deadline", &opts.OverallDeadline},
		{file.QueuePollTimeout, "queue_poll_timeout", &opts.QueuePollTimeout},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.raw)
		if err != nil {
			return zerr.With(zerr.With(ErrInvalidDuration, "field", d.field), "value", d.raw)
		}
		*d.dst = parsed
	}
	return nil
}
