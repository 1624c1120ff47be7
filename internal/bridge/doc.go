// Package bridge implements the generic method-invocation layer between
// JSON-speaking callers and the Artifactory client: a concurrency-safe
// handle store for objects with no JSON shape, a value codec that renders
// arbitrary results as JSON-safe structures and resolves handle, byte and
// path references inside arguments, and a reflective engine that invokes
// public methods on a target object by name.
//
// The store is the only shared mutable state in the package. Everything
// else is passed explicitly: the codec holds a store reference and a path
// resolver, the engine holds a codec. This keeps the engine testable with
// a throwaway store.
package bridge
