// Package template builds the anatomical-reference pipeline: the step graph
// that fuses one or more same-subject 3-D scans into a single, canonically
// oriented reference volume plus one realignment transform per input.
//
// The graph topology depends on the input count. A single scan only needs
// validity checking and conforming; its realignment transform is the
// identity by construction. Multiple scans additionally go through bias
// correction, robust registration/averaging, reorientation, and per-input
// transform composition. The two shapes are emitted by separate strategies
// selected once, at construction time.
package template
