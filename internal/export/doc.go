// Package export builds aligned snapshot+feature datasets and splits
// them into clean and corrupted outputs.
//
// A row is corrupted when its key is an orphan (present in only one of
// the two tables) or when its cadence breaks: a non-positive timestamp
// delta, or a delta off the configured sampling grid. Every key of the
// source tables lands in exactly one of the two outputs.
package export
