// Package handler provides the HTTP middleware that gives every request its
// own bound Logger and records how the request completed.
package handler
