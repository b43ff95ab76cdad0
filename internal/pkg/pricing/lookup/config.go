package lookup

import "time"

type Config struct {
	NegativeCacheTTL time.Duration `configKey:"negativeCacheTtl" configUsage:"How long a confirmed miss blocks new remote lookups." validate:"required,min=1m"`
	HistoryWindow    time.Duration `configKey:"historyWindow" configUsage:"Age limit of local observations used for the aggregated price." validate:"required"`
	CacheMaxEntries  int64         `configKey:"cacheMaxEntries" configUsage:"Capacity of the in-memory negative cache front." validate:"required,min=64"`
}

func NewConfig() Config {
	return Config{
		NegativeCacheTTL: 24 * time.Hour,
		HistoryWindow:    3 * 30 * 24 * time.Hour,
		CacheMaxEntries:  100_000,
	}
}
