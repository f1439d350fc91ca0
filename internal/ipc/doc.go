// Package ipc exposes the daemon over JSON-RPC Unix sockets and ships the
// matching client used by the CLI.
//
// It owns socket lifecycle management and the request/response DTOs. Task
// records and status snapshots are already wire-shaped, so the protocol
// aliases them instead of duplicating structs. The server embeds the daemon
// while the client decorates calls with a dial timeout so CLI commands fail
// fast when the daemon is offline.
package ipc
