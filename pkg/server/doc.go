// Package server provides the HTTP server for browsing mapped models.
//
// The server holds the mapper requests are served from. It uses
// gorilla/mux for routing and gorilla/handlers for access logs and panic
// recovery.
//
// # Server Setup
//
//	srv := server.NewServer(mapper, logger, "127.0.0.1", "8080")
//	endpoints.RegisterAll(srv)
//	if err := srv.Start(); err != nil {
//	    log.Fatal(err)
//	}
//
// # Endpoints
//
// API endpoints are registered via the endpoints subpackage:
//
//   - /models - Model definitions
//   - /{repository}/{model} - Resources matching query parameters
//   - /{repository}/{model}/{key} - One resource by key
//   - /{repository}/{model}/{key}/{relationship} - Related resources
//
// Each request runs in its own repository scope, so resources are loaded
// once per request and identity maps don't outlive it.
package server
