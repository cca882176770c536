// Package runlog keeps the outcome of the latest run per brand.
//
// The ledger is a single JSON file (by default runs.json in the data
// directory, ~/.local/share/tagsync on Linux). It is rewritten atomically
// through a temporary file and rename, so a crash never leaves it half
// written. `tagsync status` reads it.
package runlog
