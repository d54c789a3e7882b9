// Package sidewrite persists relayed packets outside the live fan-out path.
//
// Writes are best-effort: the relay hands packets to an Async writer that
// never blocks and whose failures are only logged and counted, so a slow or
// unreachable store can never delay delivery to connected clients.
package sidewrite
