// Package fuzztests feeds arbitrary bytes through the full analysis
// pipeline. Whatever the input, the pipeline must produce diagnostics
// and Unknown types, never a panic or a hang.
package fuzztests
