// Package main hosts the Slicer CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into export
// registry operations, worker handshake checks, batch export runs, and
// configuration scaffolding. It centralizes configuration resolution, store
// wiring, and structured logging setup so subcommands can focus on user
// experience instead of plumbing.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
