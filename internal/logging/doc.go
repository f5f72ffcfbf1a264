// Package logging builds the slog loggers shared by the controller, the engine
// downloader and the process runner.
//
// Console output gets a text handler, everything else gets JSON so log files
// stay machine readable. ProgressSampler keeps byte-level download progress
// from flooding the log.
package logging
