package realtime

import (
	"encoding/json"
	"log"

	"prompt-mastare/internal/metrics"
)

// Router fans an event out to every live connection in a scope. Delivery is
// fire-and-forget, at most once per connection per call: a failed send is
// logged and skipped, never aborting delivery to the remaining peers. Missed
// messages are not redelivered; late joiners reconcile via the REST read
// path.
type Router struct {
	registry *Registry
}

func NewRouter(registry *Registry) *Router {
	return &Router{registry: registry}
}

// ToTeam sends event to every connection scoped to teamID. A non-nil exclude
// skips that connection so a sender doesn't receive its own echo.
func (r *Router) ToTeam(teamID uint64, event any, exclude Conn) {
	r.fanOut(r.registry.ListByTeam(teamID), event, exclude)
}

// ToPrompt sends event to every connection scoped to promptID.
func (r *Router) ToPrompt(promptID uint64, event any, exclude Conn) {
	r.fanOut(r.registry.ListByPrompt(promptID), event, exclude)
}

func (r *Router) fanOut(clients []*Client, event any, exclude Conn) {
	data, err := json.Marshal(event) // serialize once for the whole fan-out
	if err != nil {
		log.Printf("broadcast marshal failed: %v", err)
		return
	}

	for _, client := range clients {
		if exclude != nil && client.Conn == exclude {
			continue
		}
		if err := client.Conn.Send(data); err != nil {
			metrics.SendFailures.Inc()
			log.Printf("send to connection %s failed, skipping: %v", client.Conn.ID(), err)
		}
	}
}

// SendTo delivers an event point-to-point to a single connection.
func (r *Router) SendTo(conn Conn, event any) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("event marshal failed: %v", err)
		return
	}
	if err := conn.Send(data); err != nil {
		metrics.SendFailures.Inc()
		log.Printf("send to connection %s failed: %v", conn.ID(), err)
	}
}
