// Package log provides the process-wide zerolog logger. Init is called once
// at startup; components derive child loggers with WithComponent, WithJobID
// and WithNode so every line carries routing context.
package log
