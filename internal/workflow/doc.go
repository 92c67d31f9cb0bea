// Package workflow implements the signx session: choose expected labels, pick a video, submit it,
// wait for processing and compare what was expected against what was detected.
//
// # Phases
//
// A session is always in exactly one [Phase]:
//
//	SelectingLabels → SelectingFile → Submitting → AwaitingCompletion → Completed
//	                                       ↓
//	                                     Failed
//
// [Machine] is the only writer of session state. Front ends call its transition methods and render
// the [Snapshot] values it publishes through [Opts.OnChange].
//
// # Generations
//
// Every session carries a generation ID. Network calls and timers remember the generation they were
// started under; when they complete after [Machine.Reset] or [Machine.Leave] the result is dropped.
//
// # History
//
// When an optional [Recorder] is configured, each acknowledged submission is stored silently.
// Recording errors are logged and never affect the session.
package workflow
