package permmap

import (
	_ "embed"
)

//go:embed default.permmap
var defaultSource string

// Default returns a fresh copy of the built-in permission map covering
// the common kernel object classes. Each call parses a new Map so
// callers can exclude classes or override weights without affecting
// each other.
func Default() *Map {
	m, err := Parse(defaultSource)
	if err != nil {
		panic("permmap: embedded default map is invalid: " + err.Error())
	}
	return m
}
