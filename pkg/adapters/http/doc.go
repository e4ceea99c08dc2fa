// Package http exposes the runtime event API over HTTP with chi.
//
//	POST   /instances                 {"definition_id": "...", "start": true}
//	GET    /instances
//	GET    /instances/{id}
//	DELETE /instances/{id}
//	POST   /instances/{id}/start
//	POST   /instances/{id}/observe    {"predicate": "kills", "value": 3}
//	POST   /instances/{id}/abandon
//	POST   /instances/{id}/interrupt  {"node": "wolves"}
//	GET    /instances/{id}/events     (server-sent outcomes)
//	POST   /observe                   world event for every instance
//	GET    /health, /info, /metrics
package http
