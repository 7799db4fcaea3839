// Command ffexec is the CLI for the single-flight media executor.
//
// Commands talk to the ffexecd daemon over its JSON-RPC Unix socket. The
// daemon subcommands manage its lifecycle, and run executes one command in
// process without a daemon.
package main
