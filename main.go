// Command anchors expands $include directives in GitHub Actions workflow
// templates and keeps .github/workflows in sync with them.
//
// Usage:
//
//	anchors [flags] <templates-dir>
//
// See internal/cli for the available flags.
package main

import "anchors/internal/cli"

func main() {
	cli.Execute()
}
