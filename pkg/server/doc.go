// Package server provides the HTTP/WebSocket synchronization server.
//
// The server exposes form snapshots over a small REST surface and streams
// change notifications to WebSocket watchers. It ties together the
// reconciler (pkg/reconcile), the snapshot store (pkg/store), and the
// form decoders (pkg/submit).
//
// # Endpoints
//
//   - POST /v1/forms/{form}/snapshot: ingest a snapshot (JSON, url-encoded,
//     or multipart), reconcile it, and answer with the diff
//   - GET /v1/forms/{form}: the persisted canonical snapshot
//   - DELETE /v1/forms/{form}: drop the form
//   - GET /v1/forms: list persisted form IDs
//   - GET /v1/forms/{form}/watch: WebSocket stream of diffs
//   - GET /healthz, GET /metrics: health and Prometheus metrics
//
// # Watch Lifecycle
//
// Each watch connection runs two goroutines:
//   - watchReadLoop: keeps the read deadline fresh from pongs and notices
//     when the peer goes away
//   - watchWriteLoop: pumps queued diffs and keepalive pings
//
// Diffs are fanned out through a per-form hub with non-blocking sends; a
// watcher that falls WatchBuffer notifications behind is disconnected so
// it cannot stall the rest.
//
// # Example Usage
//
//	srv, err := server.New(server.Config{
//	    Addr: ":8080",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	srv.Run()
//
// The server also mounts into an existing router:
//
//	r := chi.NewRouter()
//	r.Mount("/sync", srv.Handler())
//
// # Thread Safety
//
// Form state is created lazily under the server mutex; each reconciler
// serializes its own snapshot applications, and hubs guard their watcher
// sets with a mutex of their own. Handlers may run concurrently.
package server
