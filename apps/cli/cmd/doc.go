// Package cmd implements the pagespec CLI commands using Cobra.
//
// Available commands:
//   - run: Execute page suites
//   - validate: Check suite syntax and selectors without loading pages
//   - list: Display the scenarios defined in suites
//   - init: Create a new pagespec project with example suites
//   - history: Show recorded runs
//   - version: Show pagespec version information
//
// The run command supports filtering, several output formats, browser
// drivers and watch mode for development workflows.
package cmd
