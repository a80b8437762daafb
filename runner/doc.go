// Package runner executes a karma configuration by generating a small node
// entry script and spawning node on it.
//
// The main components are:
//   - KarmaRunner: writes the run directory, starts node and maps its exit
//     status onto a process exit code
//   - ParseLine: separates the framed records the entry script emits
//     (rendered failures, karma log records, fatal start-up errors) from
//     ordinary console output
//
// Failures reported by karma never reach the terminal unformatted: the entry
// script forwards them to the Go side, which renders them with the
// configuration's FormatError before printing.
package runner
