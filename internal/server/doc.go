// Package server hosts the Fiber admin service: request-ID and access-log
// middleware plus the app constructor that the routes package attaches cache
// maintenance, freshness and metrics endpoints to. All admin paths live under
// "/-/" so they never collide with artifact paths if a proxy surface is added.
package server
