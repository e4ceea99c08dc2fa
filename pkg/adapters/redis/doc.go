// Package redis provides Redis-backed instance storage, a shared definition
// registry and a distributed locker for running several executors side by side.
package redis
