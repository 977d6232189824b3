// Package analysis defines the per-track analysis record consumed by the
// pipeline and the pure compatibility analyzer derived from a pair of
// records.
//
// Records arrive from an upstream analysis producer and are schema-validated
// on receipt; beat extraction itself is out of scope. The harmonic wheel
// (twelve positions, two mode rings) drives key-compatibility scoring.
package analysis
