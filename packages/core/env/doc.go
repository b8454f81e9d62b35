// Package env handles variable resolution for pagespec suites.
//
// It provides functionality for:
//   - Loading .env files
//   - Variable interpolation using {{variable}} and {{$ENV_VAR}} syntax
//   - Builtin function calls such as {{$uuid()}} and {{$year()}}
//   - Environment-specific variables from pagespec.yaml
package env
