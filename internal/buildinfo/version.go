// Package buildinfo exposes the binary version, set at build time via
// -ldflags "-X github.com/silver2dream/agent-arena/internal/buildinfo.Version=...".
package buildinfo

// Version is the arena build version.
var Version = "dev"
