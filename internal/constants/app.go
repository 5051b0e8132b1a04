package constants

import (
	"time"
)

// Application identity
const (
	// AppName is the binary and config directory name.
	AppName = "bucketdesk"

	// ConfigFileName is the INI file holding app settings and storage profiles.
	ConfigFileName = "bucketdesk.conf"

	// SocketFileName is the unix socket the long-lived process listens on.
	SocketFileName = "bucketdesk.sock"
)

// Event System
const (
	// EventBusDefaultBuffer - default buffer size for event channels (1000)
	// 1000 events is generous for request/response traffic from a single UI
	EventBusDefaultBuffer = 1000

	// EventBusMaxBuffer - maximum buffer size for high-throughput scenarios (5000)
	EventBusMaxBuffer = 5000

	// EventBusDropLogEvery - log a warning every N dropped messages
	EventBusDropLogEvery = 100

	// EventBusReportInterval - how often serve reports bus channels and drops (1 minute)
	EventBusReportInterval = time.Minute
)

// Call correlation
const (
	// DefaultCallTimeout - how long a call waits for its response envelope (30 seconds)
	// Listing a large bucket is the slowest call; 30s covers ~100k keys on S3.
	DefaultCallTimeout = 30 * time.Second

	// MinCallTimeout - lower bound accepted from config (1 second)
	MinCallTimeout = 1 * time.Second

	// MaxCallTimeout - upper bound accepted from config (10 minutes)
	MaxCallTimeout = 10 * time.Minute

	// SocketWriteTimeout - deadline for writing a single frame to a socket peer
	SocketWriteTimeout = 10 * time.Second

	// MaxFrameSize - largest frame accepted on the socket transport (64 MB)
	// A switch-bucket response for a very large bucket is the largest frame.
	MaxFrameSize = 64 * 1024 * 1024
)

// Listing
const (
	// ListPageSize - keys requested per listing page
	ListPageSize = 1000

	// MaxPaginationPages - maximum pages to fetch before stopping (prevents infinite loops)
	// At 1000 keys/page this allows up to 1,000,000 keys
	MaxPaginationPages = 1000

	// RecentTransferCount - number of transfers shown in the tray recent list
	RecentTransferCount = 5
)

// Retry configuration
const (
	// MaxRetries - maximum number of retries for transient HTTP errors
	MaxRetries = 5

	// RetryWaitMin - minimum wait between retries (1 second)
	RetryWaitMin = 1 * time.Second

	// RetryWaitMax - maximum wait between retries (30 seconds)
	RetryWaitMax = 30 * time.Second
)

// HTTP Client Timeouts
const (
	// HTTPIdleConnTimeout - how long to keep idle connections open (90 seconds)
	HTTPIdleConnTimeout = 90 * time.Second

	// HTTPTLSHandshakeTimeout - timeout for TLS handshake (60 seconds)
	HTTPTLSHandshakeTimeout = 60 * time.Second

	// HTTPExpectContinueTimeout - timeout for 100-continue response (1 second)
	HTTPExpectContinueTimeout = 1 * time.Second

	// HTTPDialTimeout - timeout for establishing connection (30 seconds)
	HTTPDialTimeout = 30 * time.Second

	// HTTPDialKeepAlive - keep-alive period for dialer (30 seconds)
	HTTPDialKeepAlive = 30 * time.Second
)
