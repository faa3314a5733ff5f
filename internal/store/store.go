// Package store holds the small key/value settings the UI layer persists
// between page loads, such as whether the side panel was left open.
package store

// Store is a callback-style key/value store of string values. A missing key
// is reported as an empty value with a nil error.
type Store interface {
	Get(key string, cb func(err error, value string))
	Set(values map[string]string) error
}
