package dynamostore

// Config holds configuration for a DynamoDB-backed store connection.
type Config struct {
	// Table is the single table holding every bucket of the repository.
	// Default: "rivet_records"
	Table string

	// Index is the secondary index name used when a search names no index
	// of its own. Empty means query the base table.
	Index string

	// BucketType is the bucket-type prefix partition keys are built from.
	// It must match the adapter's bucket type. Default: "rivet"
	BucketType string

	// Region overrides the AWS region resolved from the environment.
	Region string
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Table:      "rivet_records",
		BucketType: "rivet",
	}
}

// validate ensures config values are within acceptable bounds.
func (c *Config) validate() {
	if c.Table == "" {
		c.Table = "rivet_records"
	}
	if c.BucketType == "" {
		c.BucketType = "rivet"
	}
}
