// Package secrets resolves deployment configuration from .env files, JSON
// credential files and process environment variables into a single nested
// mapping with secrets-style accessors (Contains, GetItem, Get, Keys, Items).
//
// Resolution tries candidate files in a fixed order and uses the first one
// that exists. Values read from files are written back into the environment
// so that collaborators reading variables directly observe them.
package secrets
