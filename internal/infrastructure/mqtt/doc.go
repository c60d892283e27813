// Package mqtt relays launcher events to an MQTT broker.
//
// The launcher only publishes; it never subscribes. Three kinds of message
// go out:
//   - every log entry, QoS 0, not retained, on {prefix}/logs/{channel}
//   - the RustFS process state, retained, on {prefix}/rustfs/state
//   - the launcher's own online/offline status, retained, on
//     {prefix}/system/status, with a Last Will for crashes
//
// The relay is optional. When mqtt.enabled is false nothing here runs, and
// a broker outage never affects supervision: log publishes are
// fire-and-forget and failures are only logged at debug level.
//
// Usage:
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	relay := mqtt.NewRelay(client)
//	supervisor.Broadcaster().AddSink(relay)
//	supervisor.AddObserver(relay)
package mqtt
