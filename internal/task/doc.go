// Package task runs batch document operations in the background and tracks
// them until they reach a terminal status.
//
// A Dispatcher validates a batch, registers a PROCESSING record in a
// Registry and hands a Task to the Runner, a bounded worker pool. When the
// queue is full the submission is rejected and the registration rolled back.
// A worker drives the BatchProcessor, which applies one Operation to every
// item, publishes per-item outcomes as it goes and finally writes COMPLETED
// or FAILED. Clients poll the Registry by task ID.
//
// Terminal records are immutable and expire after a retention period: the
// Janitor sweeps a MemoryRegistry, the Redis registry expires keys itself.
package task
