package replication

import "time"

type Config struct {
	Enabled        bool          `configKey:"enabled" configUsage:"Enable replication to peer nodes."`
	Peers          []string      `configKey:"peers" configUsage:"Base URLs of the peer nodes." validate:"dive,url"`
	FlushInterval  time.Duration `configKey:"flushInterval" configUsage:"Cadence of the periodic buffer flush." validate:"required,min=1s"`
	FlushThreshold int           `configKey:"flushThreshold" configUsage:"Buffer size that triggers an immediate flush." validate:"required,min=1"`
	ChunkSize      int           `configKey:"chunkSize" configUsage:"Maximum entities per upload call." validate:"required,min=1,max=1000"`
}

func NewConfig() Config {
	return Config{
		Enabled:        true,
		FlushInterval:  15 * time.Second,
		FlushThreshold: 100,
		ChunkSize:      50,
	}
}
