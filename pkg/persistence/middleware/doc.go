// Package middleware wraps ports.InstanceStore with record transformations:
// AES-GCM encryption with key rotation, and masking of sensitive observations.
//
//	enc, _ := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key})
//	pii, _ := middleware.NewPIIMiddleware([]string{"^player\\.email$"})
//	store := middleware.Chain(redis.NewFromClient(client), pii, enc)
package middleware
