// Package dev provides the preview server used by "shipsite serve".
//
// The server builds the project once, serves the output directory over HTTP
// and, with hot reload enabled, watches the source directory. Every change
// triggers a rebuild; connected browsers are told to reload the page, swap
// stylesheets, or show the build error.
//
// # Usage
//
//	srv := dev.NewServer(dev.ServerOptions{Config: cfg})
//	if err := srv.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// # Hot Reload Protocol
//
// The browser connects to /_shipsite/reload via WebSocket.
// Messages are JSON-encoded:
//
//	{"type": "reload"}                  // Triggers full page reload
//	{"type": "css", "file": "a.css"}    // Triggers stylesheet reload
//	{"type": "error", "error": "..."}   // Shows error overlay
//	{"type": "clear"}                   // Clears error overlay
package dev
