// Package labels holds the traffic-sign label catalog and the set operations the workflow performs on it.
//
// # Catalog
//
// [Catalog] is the fixed, ordered list of labels the processing service can detect.
// The user marks a subset of it as expected through a [Selection].
//
// # Sets
//
// [Set] is an insertion-ordered set keyed by the NFC-normalized, trimmed label text,
// so "Stop" and " Stop " are the same member. Expected labels and detected labels are both Sets.
//
// # Comparison
//
// [Compare] merges an expected and a detected Set into a [Comparison]: expected labels first
// (matched or missed), then labels the service detected that nobody expected.
package labels
