// Package cmd implements the command-line interface for taskdeck.
//
// This package provides the following commands:
//   - serve: Start the task server (MCP over stdio, or HTTP with the
//     REST API and the MCP endpoint)
//   - token: Mint a development bearer token against the shared secret
//   - version: Display version information
//
// The serve command is the default command when no subcommand is specified.
package cmd
