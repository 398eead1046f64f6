// Package mqtt mirrors the activity log onto an MQTT broker so home
// automation and dashboards can react to agent events. Every recorded
// event is published as JSON to <prefix>/sessions/<session>/activity.
//
// The publisher uses Eclipse Paho v2's [autopaho] package for
// connection management with automatic reconnection. On every
// (re-)connect it publishes a retained birth message ("online") to the
// availability topic; a will message flips it to "offline" on
// unexpected disconnects.
package mqtt
