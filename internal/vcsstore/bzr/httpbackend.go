package bzr

import "net/http"

// HTTPBackendHandler serves Bazaar's dumb HTTP transport: Breezy can read
// a repository directly over plain file access, so unlike git's smart
// CGI backend this is just a read-only static file server rooted at
// BaseDir. Pushing over HTTP is not supported for Bazaar codebases; those
// are updated through the admin-only POST /{codebase}/remote/{name} route,
// which pulls from the given URL.
func (s *Store) HTTPBackendHandler() http.Handler {
	return http.FileServer(http.Dir(s.BaseDir))
}
