// Package server exposes the journey graph over HTTP.
//
// One path is method-dispatched: GET returns the document, PUT replaces it,
// anything else is 405 with an Allow header. The endpoint has no
// authentication. A /health route and request logging are mounted alongside.
package server
