// Package pebblestore is a backing store on the Pebble LSM engine.
//
// Key layout:
//
//	r/<id>                 -> entity name
//	e/<entity>\x00<id>     -> canonical JSON payload
//	m/model                -> registry JSON of the model rows were written under
//
// Fetches scan one entity's key range and evaluate the request in memory
// with queryir.Apply, so results order and page exactly like the SQL stores.
package pebblestore
