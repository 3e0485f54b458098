// Package daemonrun bootstraps the long-running daemon process: logger, pid
// file, store, processor, workflow manager, and signal handling. Both the
// platewatchd binary and `platewatch daemon` call Run.
package daemonrun
