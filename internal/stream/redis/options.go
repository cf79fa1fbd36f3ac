package redis

import "time"

const (
	DefaultStream = "governed-runs"
	DefaultGroup  = "governed-runtime"
)

// Options names the consumer group position and read shape. Zero values
// are replaced by Normalize.
type Options struct {
	Stream    string
	Group     string
	Consumer  string
	BatchSize int64
	Block     time.Duration
}

func (o Options) Normalize() Options {
	if o.Stream == "" {
		o.Stream = DefaultStream
	}
	if o.Group == "" {
		o.Group = DefaultGroup
	}
	if o.Consumer == "" {
		o.Consumer = "consumer-1"
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 1
	}
	if o.Block <= 0 {
		o.Block = 2 * time.Second
	}
	return o
}
