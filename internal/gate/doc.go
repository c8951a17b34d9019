// Package gate decides, per field and per row, whether a value still needs
// computation.
//
// Text fields need work when blank. The category field needs work only when it
// holds a blank sentinel; any other value is kept even if it is not a current
// taxonomy label, and such values are counted as unrecognized for telemetry.
package gate
