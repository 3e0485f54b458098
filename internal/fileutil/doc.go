// Package fileutil holds small filesystem helpers shared by the report and
// config writers.
package fileutil
