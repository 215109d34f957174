package agent

// EventType discriminates the events emitted while processing a query.
type EventType string

const (
	// EventAnswerChunk carries one increment of streamed answer text.
	EventAnswerChunk EventType = "answer_chunk"

	// EventFinalData carries the source list after the answer completes.
	EventFinalData EventType = "final_data"

	// EventError carries a user-facing failure message and ends the turn.
	EventError EventType = "error"
)

// Event is one item of the ordered stream returned by ProcessQuery.
type Event struct {
	Type EventType

	// Content is answer text for answer_chunk and the canned message for
	// error events.
	Content string

	// Sources is set only on final_data: distinct source URLs followed by
	// distinct passage ids.
	Sources []string
}
