package dialect

import "net/http"

// CORSMiddleware sets the headers every AWS SDK browser client needs and
// short-circuits OPTIONS with a bare 204, per §6. Grounded on the
// teacher's corsMiddleware, adapted: the teacher answers OPTIONS with 200
// and falls through to the next handler on every other verb unchanged;
// here OPTIONS must return 204 with no body.
func CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, HEAD, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Amz-Target, X-Amz-Content-Sha256, X-Amz-Date, X-Amz-Security-Token")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
