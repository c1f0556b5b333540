// Package discovery finds the tool binary.
//
// Each installation method is a Strategy. A Chain tries strategies in order
// and stops at the first one that produces an existing file. Two orderings
// exist: LocalStrategies when a single project root is known and
// GlobalStrategies otherwise.
package discovery
