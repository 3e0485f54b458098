// Package audit records the forensic event trail of a run.
//
// Pipeline components describe what they decided (tracks validated or
// dropped, batch outcomes, arbitration verdicts, threshold changes) through
// the Recorder interface. The store-backed recorder persists events for the
// CLI, the log recorder mirrors them into structured logs, and Multi fans out
// to both. Recording never fails a run: errors are logged and swallowed.
package audit
