// Package pipeline provides the typed, directed acyclic step graph that
// imaging workflows are compiled into. Every node declares typed ports;
// connections and constants are type-checked as they are added, so a frozen
// pipeline is structurally sound before anything runs.
package pipeline
