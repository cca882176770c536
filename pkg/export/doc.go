// Package export writes the batch file of a run.
//
// Each run produces {brand_name}_{YYYYMMDD}.csv in the export directory,
// named after the target day. Files are UTF-8 with a byte order mark and a
// header row, written to a temporary file and renamed into place so a
// partial file is never visible. Re-running a day replaces its file.
//
//	w, err := export.NewWriter(cfg.Export.Directory, log)
//	path, err := w.Write("Acme", "2025-03-01", records)
package export
