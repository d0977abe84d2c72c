// Package infra contains technical adapters such as store backends, event
// transports and metrics exporters. These packages depend only on the
// interfaces defined in the core packages.
package infra
