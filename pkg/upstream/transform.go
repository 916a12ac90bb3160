package upstream

import "regexp"

// demoCommentPattern matches a fenced custom-element-demo code block that
// the source repo wrapped in an HTML comment to hide it from its own
// README preview, e.g.:
//
//	<!--
//	```html
//	<custom-element-demo>
//	  ...
//	</custom-element-demo>
//	```
//	-->
var demoCommentPattern = regexp.MustCompile(`(?s)<!---?\n*(` + "```" + `(?:html)?\n<custom-element-demo.*?` + "```" + `)\n-->`)

// InlineDemoTransform un-wraps a commented-out demo block so the catalog's
// own README render shows the demo inline, ported bit for bit from the
// original inline_demo_transform.
func InlineDemoTransform(markdown string) string {
	return demoCommentPattern.ReplaceAllString(markdown, "$1")
}
