// Package main provides the entry point for the sitemirror CLI.
//
// sitemirror copies a website to local storage. Starting from a seed URL it
// downloads pages, stylesheets, scripts and images of the same host, keeps
// them byte-for-byte under a directory tree that follows the URL paths, and
// follows references up to a bounded depth.
//
// Usage:
//
//	sitemirror mirror <url>
//	sitemirror mirror -o ./out -d 3 <url> [<url>...]
//	sitemirror history
//
// See --help for all available options.
package main

// main is the entry point for sitemirror.
func main() {
	Execute()
}
