// Package ratelimit throttles requests to the CMS portal.
//
// The portal does not publish limits, so throttling is off by default.
// Setting rate_limit.requests_per_minute enables a token bucket that every
// file download waits on before each attempt.
package ratelimit
