// Package assertions evaluates page expectations against a DOM.
//
// Supported kinds:
//   - exists / not-exists (selector matches at least one / no element)
//   - has-attribute and attribute-equals (first match)
//   - contains-text and matches-pattern (normalised text of all matches)
//   - count (exact number of matches)
//   - json-path and json-schema (text of the first match, e.g. JSON-LD)
//   - snapshot (outer HTML of the first match)
//
// An Evaluator carries a scope stack for within blocks. On live pages the
// positive kinds are retried until they pass or the poll timeout elapses;
// not-exists and snapshot are always checked once.
package assertions
