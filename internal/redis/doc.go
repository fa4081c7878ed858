// Package redis implements Redis-backed stores.
//
// Provides the connection helper and PresenceStore, the sorted-set based
// tracker of recently active voters per room used for dashboard stats.
package redis
