package adapter

// Config holds configuration for an Adapter.
type Config struct {
	// BucketType is the bucket-type prefix under which all of this
	// repository's buckets live. Default: "rivet"
	BucketType string
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		BucketType: "rivet",
	}
}

// validate ensures config values are within acceptable bounds.
func (c *Config) validate() {
	if c.BucketType == "" {
		c.BucketType = "rivet"
	}
}
