package marketapi

import "time"

type Config struct {
	BaseURL          string        `configKey:"baseUrl" configUsage:"Base URL of the marketplace price API." validate:"required,url"`
	Token            string        `configKey:"token" configUsage:"API token." sensitive:"true"`
	RequestTimeout   time.Duration `configKey:"requestTimeout" configUsage:"Timeout of one API request." validate:"required"`
	RetryCount       int           `configKey:"retryCount" configUsage:"How many times a failed request is retried." validate:"min=0,max=10"`
	RetryWaitTime    time.Duration `configKey:"retryWaitTime" configUsage:"Initial wait time between retries."`
	RetryWaitTimeMax time.Duration `configKey:"retryWaitTimeMax" configUsage:"Maximum wait time between retries."`
}

func NewConfig() Config {
	return Config{
		RequestTimeout:   45 * time.Second,
		RetryCount:       3,
		RetryWaitTime:    100 * time.Millisecond,
		RetryWaitTimeMax: 3 * time.Second,
	}
}
