// Package cli implements the command-line interface for chi-landmarks.
//
// The cli package provides the Cobra-based CLI: the root command checks the
// Commission on Chicago Landmarks page for newly published meetings, and the
// parse, ics, notify and serve subcommands extract a saved page, export an
// iCalendar file, post new meetings and run the HTTP server. Settings come
// from viper (file, CHI_LANDMARKS_* environment, flags). It coordinates the
// scraper, storage and event packages and formats output as text, JSON or
// YAML sorted by date, name or status.
package cli
