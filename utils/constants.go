package utils

import (
	"time"
)

// Token time constants
const (
	// AccessTokenTTL is the time-to-live for operator access tokens (24 hours)
	AccessTokenTTL = 24 * time.Hour
)

// CORS and security constants
const (
	// CORSMaxAge is the maximum age for CORS preflight requests (24 hours)
	CORSMaxAge = 86400
)

// Delivery constants
const (
	// MessageRefHeader carries "<campaign>_<subscriber>" on every outgoing campaign message
	MessageRefHeader = "X-Entity-Ref-ID"

	// RFC 8058 one-click unsubscribe headers
	ListUnsubscribeHeader     = "List-Unsubscribe"
	ListUnsubscribePostHeader = "List-Unsubscribe-Post"
	ListUnsubscribeOneClick   = "List-Unsubscribe=One-Click"

	// TestSubjectPrefix is prepended to the subject of test sends
	TestSubjectPrefix = "TEST: "

	// DefaultProgressEvery is how many successful sends happen between counter flushes
	DefaultProgressEvery = 10

	// RecentActivityWindow is the look-back window for recent campaign activity
	RecentActivityWindow = time.Hour

	// PerformanceDays is the default length of the performance series
	PerformanceDays = 30
)

// TrackingPixelGIF is a transparent 1x1 GIF, base64 encoded
const TrackingPixelGIF = "R0lGODlhAQABAIAAAAAAAP///yH5BAEAAAAALAAAAAABAAEAAAIBRAA7"
