// Package ratelimit throttles object-store listing requests per account.
package ratelimit

import "time"

// Provider request limits
//
// S3 allows at least 5,500 GET/HEAD requests per second per partitioned
// prefix; LIST counts against the same budget. Azure Blob Storage allows
// roughly 20,000 requests per second per storage account. A browsing client
// never needs more than a small slice of either, so the targets below are
// far under the hard limits and only matter when many listings run at once.
const (
	// S3ListRatePerSec is the sustained LIST page rate per S3 account.
	S3ListRatePerSec = 50.0

	// S3ListBurstCapacity covers a full listing of a large bucket
	// (MaxPaginationPages) without waiting.
	S3ListBurstCapacity = 200.0

	// AzureListRatePerSec is the sustained List Blobs page rate per
	// storage account.
	AzureListRatePerSec = 100.0

	// AzureListBurstCapacity matches S3ListBurstCapacity.
	AzureListBurstCapacity = 200.0
)

// Warning thresholds
const (
	// WarnWaitThreshold is the expected wait above which Wait logs a warning.
	WarnWaitThreshold = 2 * time.Second

	// WarnInterval limits how often the warning is repeated.
	WarnInterval = 10 * time.Second

	// SlowWaitThreshold is the completed wait above which Wait logs again.
	SlowWaitThreshold = 5 * time.Second
)
