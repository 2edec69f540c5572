// Package application wires the resolver, the snapshot store, metrics, the
// status API and the reload triggers into a runnable server, keeping the main
// package focused on CLI parsing and orchestration.
package application
