package repository

import "time"

const defaultMetricsUpdateInterval = 5 * time.Second

type storeOptions struct {
	metricsUpdateInterval time.Duration
}

func defaultStoreOptions() storeOptions {
	return storeOptions{metricsUpdateInterval: defaultMetricsUpdateInterval}
}

// Option configures a Store implementation.
type Option func(*storeOptions)

// WithMetricsUpdateInterval sets the interval for background gauge updates.
func WithMetricsUpdateInterval(interval time.Duration) Option {
	return func(o *storeOptions) {
		if interval > 0 {
			o.metricsUpdateInterval = interval
		}
	}
}
