// Package device provides the host device registry.
//
// The registry is the catalogue of live logical devices. Import modules
// create entries from broker metadata, update their attributes as values
// arrive, and handle the commands users address to them.
//
// # Key Types
//
//   - Device: a live entry with path-addressed attributes ("metrics:level")
//   - Kind: sensorBinary, switchBinary, switchMultilevel, sensorMultilevel
//   - Command: the tagged on/off or exact-level intent
//   - Change: the notification delivered to Subscribe listeners
//
// # Usage
//
//	registry := device.NewRegistry()
//	registry.SetLogger(log)
//	registry.RegisterHandler("wbimport_1", module)
//
//	dev, err := registry.Create(device.Descriptor{
//	    ID:    "WB_1_wb-gpio_controls_K1",
//	    Kind:  device.KindSwitchBinary,
//	    Owner: "wbimport_1",
//	    Level: device.LevelOff,
//	})
//	dev.Set(device.PathLevel, device.LevelOn)
//
//	err = registry.Command(ctx, dev.ID(), device.Switch(false))
package device
