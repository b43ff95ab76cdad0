package sweep

import "time"

type Config struct {
	Enabled         bool          `configKey:"enabled" configUsage:"Enable the background price sweep."`
	Interval        time.Duration `configKey:"interval" configUsage:"Cadence of the sweep ticks." validate:"required,min=10s"`
	Currency        string        `configKey:"currency" configUsage:"Currency the sweep queries prices in." validate:"required,len=3"`
	BatchHardCap    int           `configKey:"batchHardCap" configUsage:"Upper bound of remote queries per tick." validate:"required,min=1,max=500"`
	RecheckInterval time.Duration `configKey:"recheckInterval" configUsage:"Minimum age before an identifier is checked again." validate:"required,min=1m"`
}

func NewConfig() Config {
	return Config{
		Enabled:         true,
		Interval:        time.Minute,
		Currency:        "EUR",
		BatchHardCap:    20,
		RecheckInterval: 24 * time.Hour,
	}
}
