package scrape

import "time"

type Config struct {
	Enabled    bool          `configKey:"enabled" configUsage:"Enable the daily scrape job."`
	Interval   time.Duration `configKey:"interval" configUsage:"Cadence of the scrape job." validate:"required,min=1h"`
	Workers    int           `configKey:"workers" configUsage:"How many records are merged in parallel." validate:"required,min=1,max=64"`
	RetryCount uint          `configKey:"retryCount" configUsage:"How many times a failed job run is retried." validate:"max=10"`
	RetryDelay time.Duration `configKey:"retryDelay" configUsage:"Fixed delay between job retries." validate:"required"`
}

func NewConfig() Config {
	return Config{
		Enabled:    true,
		Interval:   24 * time.Hour,
		Workers:    4,
		RetryCount: 3,
		RetryDelay: time.Hour,
	}
}
