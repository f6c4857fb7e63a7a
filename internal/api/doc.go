// Package api implements the HTTP REST API and WebSocket server of the
// import service.
//
// The REST surface under /api/v1 inspects and steers one import module:
// connection status, the discovered devices with their enabled flag and
// live level, enable/disable/forget, device commands routed through the
// registry, the published namespaces and a dump of the topic tree.
//
// The server follows the same lifecycle pattern as other infrastructure
// components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// # WebSocket
//
// Clients connect to /api/v1/ws and subscribe to "device.changed" (registry
// changes) or "namespace.updated" (device listings). Events are relayed from
// registry and namespace listeners; a slow client loses messages rather than
// stalling the import module.
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api
