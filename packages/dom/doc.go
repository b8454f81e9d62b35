// Package dom wraps a parsed HTML page for selector queries.
//
// Selectors use the CSS grammar implemented by cascadia, including attribute
// predicates with single or double quotes:
//
//	a[class="header-link-home"]
//	a[href='https://twitter.com/dkpk_']
//
// Queries never fail: an unmatched or malformed selector yields an empty
// selection. Compile reports malformed selectors as *SelectorSyntaxError.
package dom
