package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gantrydb/gantry/internal/model"
)

// writeJSON serializes v as JSON and writes it to the response with the given
// HTTP status code. The Content-Type header is set to application/json.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes the standard error envelope: {"detail": <message>}.
func writeError(w http.ResponseWriter, code int, detail string) {
	writeJSON(w, code, model.ErrorResponse{Detail: detail})
}

// readJSON decodes the request body as JSON into v. The body is closed after
// decoding regardless of success or failure.
func readJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// queryInt extracts an integer query parameter, returning defaultVal if the
// parameter is missing or cannot be parsed.
func queryInt(r *http.Request, key string, defaultVal int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

// pagination clamps page/per_page query parameters to sane bounds.
func pagination(r *http.Request) (page, perPage int) {
	page = queryInt(r, "page", 1)
	if page < 1 {
		page = 1
	}
	perPage = queryInt(r, "per_page", 10)
	if perPage < 1 {
		perPage = 10
	}
	if perPage > 100 {
		perPage = 100
	}
	return page, perPage
}
