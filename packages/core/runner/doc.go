// Package runner executes pagespec suites.
//
// Each scenario gets a fresh page from the configured browser driver: the
// runner navigates to the scenario's visit target, then executes its steps
// strictly in declaration order. Failed expectations are recorded and the
// scenario continues; a navigation failure ends the scenario. Suite-level
// after steps run once, on a fresh page, once every scenario has finished.
//
// Scenarios are selected with name patterns, tags and the only flag, and a
// run can stop at the first failing scenario (bail).
package runner
