// Package logging provides leveled logging for the asset indexer.
//
// The log level is read once from the environment: set DEBUG=true or
// LOG_LEVEL=debug|info|warn|error. The default level is info.
package logging
