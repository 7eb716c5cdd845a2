// Package populate defines the message contract between the elevations API
// and the workers that compute missing cells. Workers decode Request from
// the population topic or webhook body.
package populate

import "time"

// DefaultTopic is where population requests are published.
const DefaultTopic = "elevation-populate"

// Request asks the population pipeline to compute elevations for the raw
// H3 indexes in Cells.
type Request struct {
	Cells       []uint64  `json:"cells"`
	RequestedAt time.Time `json:"requested_at"`
}
