// Package yarn holds the records produced by syndisco runs.
//
// Yarn is the thread that connects everything - tracking WHAT HAPPENED in a
// simulated discussion. A Discussion is the append-only transcript of one
// run of the turn-taking loop; an Annotation is the per-message judgment
// pass of a labeling actor over an existing Discussion.
//
// Messages carry a dense ordinal (0, 1, 2, ...) that is the only ordering
// the records promise. Stores persist each record as one JSON file whose
// name is derived from the creation time and the record id, so files from
// concurrent runs never collide.
package yarn
