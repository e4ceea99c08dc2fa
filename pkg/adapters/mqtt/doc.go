// Package mqtt bridges gameplay events published on an MQTT broker into
// runtime observations.
//
// A message on questgraph/events/kills with payload 3 observes kills=3 on
// every instance. An object payload can target one instance:
//
//	{"instance": "q-1", "predicate": "talked", "value": true}
package mqtt
