// Package service holds the document use cases that sit between the HTTP
// handlers and the storage layers: upload, listing, download, deletion and
// semantic search.
package service
