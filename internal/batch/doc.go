// Package batch coordinates user-initiated export requests: it resolves
// targets against the document store, backfills default assets, obtains a
// destination folder, fans out one task per configured asset against the
// rendering worker, and reconciles outcomes into the export registry. At most
// one batch runs at a time; concurrent requests are rejected.
package batch
