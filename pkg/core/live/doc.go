// Package live implements the real-time duplex tutoring session: a
// learner's microphone audio streams up to the speech model while
// synthesized tutor speech streams back down and plays gaplessly.
//
// # Architecture
//
//   - Session: orchestrates the full lifecycle from dial to evaluation
//   - Scheduler: keeps synthesized playback gapless and interruptible
//   - Transcript: folds streamed transcription fragments into turns
//   - MissionTrigger: latches the model's completion declaration
//
// # Data Flow
//
//	Mic frames → SendFrame → encode (16 kHz PCM16) → transport
//	Transport events → audio → Scheduler → speaker sink
//	                 → transcriptions → Transcript
//	                 → tool calls → MissionTrigger
//
// # Lifecycle
//
// The session progresses through these phases:
//
//	IDLE → CONNECTING → OPEN ⇄ INTERRUPTED
//	                      │
//	                      └→ EVALUATING → CLOSED
//
// A transport or dial failure lands in FAILED instead. Evaluation runs
// at most once, whether triggered by the mission grace timer, a user
// finish, or a server-side close.
package live
