// Package panel brings up MIPI-DSI panels from static command tables.
//
// A panel model is data: its DSI link parameters, its default timing, an
// optional power-on pin sequence and the vendor init sequence. Run feeds a
// sequence to a DSIHost one packet at a time and stops at the first
// failure; Panel.Enable wraps that with power sequencing and retries.
package panel
