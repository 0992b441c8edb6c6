// Package framebase is a document store for media datasets whose schema
// is versioned and migrated in both directions.
//
// A dataset is a named collection of sample documents (one per image or
// video) plus, for videos, a frame collection holding one document per
// frame. The shape of the sample documents is described by a catalog
// descriptor, and that shape has changed over the life of the system:
// each change is captured as a revision that knows how to carry a dataset
// across one version boundary, upward and downward. Old readers keep
// working against old shapes, new readers get the new ones, and a dataset
// moves between them on demand.
//
// # Features
//
//   - Versioned catalog: every dataset records the schema version its
//     documents currently have
//   - Bidirectional migrations: revisions declare both directions, so
//     datasets can be downgraded for old clients and upgraded back
//   - Stepwise commits: each revision commits before the next starts, so
//     an aborted run never strands a dataset between versions
//   - Advisory leases: concurrent migrations of the same dataset are
//     refused instead of interleaved
//   - Shared session state: connected clients see each other's dataset
//     selection and view over WebSocket
//   - Pluggable storage: in-memory, SurrealDB and MongoDB backends behind
//     one store interface
//
// # Architecture Overview
//
//   - [github.com/framebase/framebase/pkg/models] defines the dataset
//     descriptor, its field schema and the schemaless document type
//   - [github.com/framebase/framebase/pkg/store] declares the storage
//     interface; [github.com/framebase/framebase/pkg/store/memory],
//     [github.com/framebase/framebase/pkg/store/surreal] and
//     [github.com/framebase/framebase/pkg/store/mongo] implement it
//   - [github.com/framebase/framebase/pkg/migrate] resolves migration
//     paths and applies them; the built-in revisions live in
//     [github.com/framebase/framebase/pkg/migrate/revisions]
//   - [github.com/framebase/framebase/pkg/state] synchronizes UI session
//     state across WebSocket clients
//   - [github.com/framebase/framebase/pkg/media] serves sample media
//     files confined to a configured root
//   - [github.com/framebase/framebase/pkg/framebase] wires everything
//     into the HTTP server behind cmd/framebase
//
// # Migration Model
//
// Revisions are registered per version boundary. The runner resolves the
// ordered steps from a dataset's current version to the target, re-reads
// and validates the descriptor before each step, persists the reshaped
// descriptor before any document is touched, and bumps the recorded
// version only after every document mutation landed. Failures therefore
// leave the dataset at the last version that fully committed, and the
// migration can be retried or reversed from there.
//
// Downgrades are honest about loss: a revision that cannot fully restore
// the old shape reports a warning rather than inventing data.
//
// # Getting Started
//
// For command-line usage and configuration see
// [github.com/framebase/framebase/pkg/framebase]. Programs embedding the
// server use the same package; programs talking to a running server use
// [github.com/framebase/framebase/pkg/client].
package framebase
