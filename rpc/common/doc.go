// Package common provides configuration structures and logging utilities
// shared across dbBench.
//
// Key Components:
//
//   - ServerConfig: Configuration of the Skyhash table server (endpoint, socket
//     options, idle timeout, tables created on startup).
//
//   - ClientConfig: Connection parameters of the Skyhash client.
//
//   - Logger: Custom implementation of Dragonboat's ILogger with consistent
//     formatting. InitLoggers installs it and sets the level of every package
//     logger listed in LoggerNames. Output goes to stderr.
package common
