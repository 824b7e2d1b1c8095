// Package provenance records pipeline runs and the folder each stage wrote
// into, so earlier outputs can be found again with `photoprep history`.
//
// The store is a single SQLite database under the state directory. Schema
// changes ship as numbered files in migrations/ and are applied in order on
// open; applied versions are tracked in schema_migrations.
package provenance
