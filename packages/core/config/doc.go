// Package config handles configuration loading and management for pagespec.
//
// It provides functionality for:
//   - Loading configuration from pagespec.yaml, searched upwards from the
//     working directory
//   - Default configuration values
//   - Environment-specific base URLs and variables
package config
