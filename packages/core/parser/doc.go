// Package parser loads page suites from YAML.
//
// A suite names a page and lists scenarios. Each scenario is a sequence of
// steps evaluated in order:
//
//	name: Blog Post
//	visit: /new-beginnings/
//	scenarios:
//	  - name: header links home
//	    steps:
//	      - within: header[class="global-header"]
//	        steps:
//	          - selector: a[class="header-link-home"]
//	            contains: Caffeinated Thoughts
//	      - selector: article[class="blog-post"]
//	        attr: itemtype
//	        equals: http://schema.org/Article
//	after:
//	  - click: a[class="header-link-home"]
//	  - url:
//	      includes: /
//
// Groups nest scenarios and prefix their names. A scenarios item that has
// scenarios or groups of its own is a group, so groups and scenarios can
// alternate in one list. Scenarios run in file order either way.
//
// Selectors are not compiled here; a malformed selector fails only the
// step that uses it.
package parser
