// Package common provides the configuration structures and the logging setup
// shared by all dShard packages and the command line interface.
//
// The package focuses on:
//   - Immutable configuration values for the executor engine, pipeline channels and importers
//   - YAML loading of configuration and plan files
//   - Custom logging implementation integrated with the Dragonboat logger registry
//
// Key Components:
//
//   - Config: The complete process configuration. Values are copied, never mutated in
//     place; the With* builders return a modified copy. Validate reports unusable values
//     before any component is built from the config.
//
//   - Plan: The serialized form of an execution group context. Plans allow the CLI to run
//     already planned work (groups of statements bound to connections) directly against
//     the executor engine.
//
//   - Logger: Every package obtains its logger with logger.GetLogger(name) from the
//     Dragonboat registry. InitLoggers installs the custom factory and sets the level of
//     all known loggers.
package common
