/*
Package loam stores quest documents as a directory of Markdown files through
the Loam library. Each file is one node: the frontmatter carries kind, flags,
config and outgoing links, the body is the node description.

	---
	kind: objective
	entry: true
	config:
	  when: talked
	next: [wolves, herbs]
	---
	Talk to the smith.
*/
package loam
