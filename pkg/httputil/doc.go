// Package httputil provides the JSON response helpers, request parsing and
// middleware shared by the eventlens HTTP endpoints.
//
// # Overview
//
// Handlers answer with JSON: WriteSuccess for data, WriteErrorMessage and
// its status-specific variants for an {"error": "..."} body.
//
// # Usage Example
//
//	router := mux.NewRouter()
//	router.Use(httputil.RequestIDMiddleware)
//	router.Use(httputil.RecoveryMiddleware(log))
//	router.Use(httputil.LoggingMiddleware(log))
//
//	router.HandleFunc("/api/v1/reports/{job}", func(w http.ResponseWriter, r *http.Request) {
//		name, ok := httputil.ParsePathStringOrError(w, r, "job")
//		if !ok {
//			return
//		}
//		limit, err := httputil.ParseQueryIntInRange(r, "limit", 20, 1, 100)
//		if err != nil {
//			httputil.WriteBadRequest(w, err.Error())
//			return
//		}
//		...
//	})
//
// # Related Packages
//
//   - pkg/server: The reports API built on these helpers
package httputil
