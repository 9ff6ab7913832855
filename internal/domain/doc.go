// Package domain contains the document entity shared by the storage,
// processing and task layers. It has no dependencies on infrastructure.
package domain
