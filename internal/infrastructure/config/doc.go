// Package config loads the import service configuration.
//
// Values come from three layers, later ones winning: built-in defaults, the
// YAML file, then WBIMPORT_* environment variables. Load validates the
// result before returning it.
//
// Broker credentials belong in WBIMPORT_MQTT_USERNAME and
// WBIMPORT_MQTT_PASSWORD rather than the file.
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    return err
//	}
//	fmt.Println(cfg.Module.ID)
package config
