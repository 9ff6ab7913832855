// Package store defines the persistence contracts for document metadata.
// Implementations live under internal/platform.
package store
