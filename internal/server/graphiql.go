package server

import (
	_ "embed"
	"net/http"
	"strconv"
	"strings"
)

//go:embed graphiql.html
var graphiqlHTML string

// servePlayground writes the GraphiQL page pointed at graphqlURL. The page
// sends cookies along with every request.
func servePlayground(w http.ResponseWriter, graphqlURL string) {
	resp := []byte(strings.ReplaceAll(graphiqlHTML, "{{graphqlURL}}", graphqlURL))
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(len(resp)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(resp)
}
