// Package threshold implements the Threshold Monitor, which nudges the
// detector's confidence threshold toward the scene's traffic density.
package threshold
