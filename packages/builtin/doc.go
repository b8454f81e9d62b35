// Package builtin provides the functions available in suite files.
//
// Available functions:
//   - uuid(): Random UUID v4
//   - now(): Current time in RFC 3339
//   - timestamp(), timestampMs(): Current Unix time
//   - date(layout): Current UTC date, layout defaults to 2006-01-02
//   - year(): Current UTC year, handy for copyright lines
//   - random(min, max): Random integer in range
//   - randomString(length): Random alphanumeric string
//   - base64(value), urlEncode(value): Encoders
//
// Functions are invoked using the {{$functionName(args)}} syntax, e.g. a
// cache-busting visit of /?v={{$uuid()}}.
package builtin
