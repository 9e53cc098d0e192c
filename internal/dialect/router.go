package dialect

import (
	"net/http"
	"strings"
)

// RootDispatcher selects between the Log API and the Stack API for
// requests to "/", per §6's selector table: a non-empty X-Amz-Target
// header means Log API, a form-urlencoded content type means Stack API.
// GET / (S3 ListBuckets) and anything else falls through to the Object
// API handler, since both services use the same path.
func RootDispatcher(logs, stacksH, objects http.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Header.Get("X-Amz-Target") != "":
			logs.ServeHTTP(w, r)
		case strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded"):
			stacksH.ServeHTTP(w, r)
		default:
			objects.ServeHTTP(w, r)
		}
	}
}
