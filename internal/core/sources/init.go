// Package sources registers the import source definitions with the core
// registry. Import it for its side effects.
package sources

// Each source file uses init() to register itself.
