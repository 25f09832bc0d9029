// Package transform applies transformations to transcript text. Each
// transformation kind compiles into a Transformer; pipeline execution feeds
// the output of one step into the next.
package transform
