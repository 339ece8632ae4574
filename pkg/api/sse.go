package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/codeready-toolchain/deepresearch/pkg/orchestrator"
)

// writeSSEEvent frames a single orchestrator Event per spec §4.2:
// `event: <name>\ndata: <single-line JSON>\n\n`.
func writeSSEEvent(w http.ResponseWriter, flusher http.Flusher, ev orchestrator.Event) {
	var name string
	var payload any
	switch ev.Type {
	case orchestrator.EventPhase:
		name, payload = "phase", ev.Phase
	case orchestrator.EventComplete:
		name, payload = "complete", ev.Complete
	case orchestrator.EventError:
		name, payload = "error", ev.Error
	default:
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return
	}

	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
	flusher.Flush()
}
