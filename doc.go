// Package pipeline provides the job scheduling and execution core of a
// distributed genome-annotation compute pipeline. It creates units of
// work tied to an analysis and an input identifier, submits them to an
// execution backend (local process fork or remote batch cluster) under
// per-analysis concurrency ceilings, tracks their lifecycle through a
// persisted status history, and manages the stdout/stderr artifacts
// they leave on shared storage.
//
// # Architecture
//
// Each subsystem lives in its own package: job defines the record, the
// status machine, and the Store persistence contract; partition splits
// sorted key spaces into bounded chunks; artifact derives output paths
// and owns the bulk retarget and retention-cleanup maintenance
// operations; backend runs attempts locally or on a batch cluster;
// controller ties them together.
//
// The scientific payload itself (alignment, gene building, homology
// search) is opaque to this layer; it is just the program a job runs.
package pipeline
