package endpoints

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
)

// NewStatusEndpoint implements GET /status for load balancer health checks. If a
// custom response is configured it is served with a 200; otherwise the endpoint
// returns 204 to show the server is alive but has nothing to say.
func NewStatusEndpoint(response string) httprouter.Handle {
	if response != "" {
		responseBytes := []byte(response)
		return httprouter.Handle(func(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
			w.Write(responseBytes)
		})
	}

	return httprouter.Handle(func(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
		w.WriteHeader(http.StatusNoContent)
	})
}
