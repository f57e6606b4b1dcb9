package ticker

// MessageType tags every message crossing the worker boundary
type MessageType string

// Inbound messages
const (
	StartTimer MessageType = "START_TIMER"
	StopTimer  MessageType = "STOP_TIMER"
	GetStatus  MessageType = "GET_STATUS"
	Ping       MessageType = "PING"
)

// Outbound messages
const (
	TimerTick     MessageType = "TIMER_TICK"
	TimerFinished MessageType = "TIMER_FINISHED"
	TimerStopped  MessageType = "TIMER_STOPPED"
	Heartbeat     MessageType = "HEARTBEAT"
	Pong          MessageType = "PONG"
	WorkerError   MessageType = "WORKER_ERROR"
)

// Message is a tagged payload exchanged with the worker.
// Generation is echoed back on every outbound message for the countdown it belongs to.
type Message struct {
	Type       MessageType
	Duration   int // seconds, START_TIMER only
	Remaining  int // seconds, TIMER_TICK and TIMER_FINISHED
	Generation uint64
	Err        string // WORKER_ERROR only
}

// Start builds a START_TIMER message
func Start(generation uint64, seconds int) Message {
	return Message{Type: StartTimer, Duration: seconds, Generation: generation}
}
