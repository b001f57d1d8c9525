// Package cmd implements the command-line interface of dShard. It provides a
// hierarchical command structure built with cobra, configured via flags,
// environment variables (DSHARD_<flag>) and an optional YAML configuration file.
//
// The package is organized into several subpackages:
//
//   - exec: Runs a YAML execution plan with the executor engine against in-process
//     memstore connections or SQL data sources
//   - pipeline: Runs a synthetic migration through a pipeline channel and the importer
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See dshard -help for a list of all commands.
package cmd
