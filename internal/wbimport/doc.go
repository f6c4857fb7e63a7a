// Package wbimport imports Wiren Board controls published over MQTT as
// logical devices in the host registry.
//
// One Module serves one broker and keeps a single session to it alive
// with a linear, capped backoff. Every inbound message is classified as
// a value update or a control definition. Definitions are reconciled
// with the device registry and the persisted known and enabled sets,
// and every known device is listed in a display namespace.
//
// # Topic convention
//
//	/devices/<device>/controls/<control>        raw value (string)
//	/devices/<device>/controls/<control>/meta   {"type":..., "readonly":..., "max":...}
//	/devices/<device>/controls/<control>/on     command written by this package
//
// # Concurrency
//
// All module state is owned by a single goroutine. Transport callbacks,
// retry timers, registry commands and API requests are posted to it as
// events and handled to completion in arrival order. Persistence is
// handed to a background saver that only keeps the latest snapshot.
//
// # Usage
//
//	mod, err := wbimport.New(wbimport.Options{
//	    Config:    cfg,
//	    Transport: mqtt.NewSession(cfg.MQTT),
//	    Registry:  registry,
//	    Store:     wbimport.NewSQLiteStore(db, cfg.Module.ID),
//	    Namespace: namespaces,
//	    Logger:    log,
//	})
//	if err := mod.Start(ctx); err != nil { ... }
//	defer mod.Stop()
package wbimport
