// Package app wires the application together: configuration, logging, and
// the run lifecycle that loads a request, builds the template pipeline,
// and writes its exports.
package app
