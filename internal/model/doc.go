// Package model defines the persisted entity types of the dictation client:
// recordings, reusable text transformations, pipelines, pipeline runs, and
// per-step transformation results.
//
// All entities are keyed by opaque string IDs. The document store in
// internal/store owns every persisted row; other packages operate on the
// value types defined here.
package model
