// Package trace adapts a JSON-lines detection trace to the pipeline
// capabilities.
//
// Each line holds one frame: its index, timestamp, optional full-frame image
// path, and the tracked detections an external detector produced for it.
// Detections may carry a crop path and a local OCR read. Relative paths
// resolve against the trace's directory.
//
//	{"index":0,"timestamp":0.0,"detections":[{"bbox":[10,20,110,80],"track_id":1,
//	  "class":"car","confidence":0.82,"crop":"crops/1-0.jpg","ocr":{"text":"KA05MN4321","confidence":0.61}}]}
//
// A Trace is loaded once and then viewed as a FrameSource (optionally
// windowed to a chunk), a Detector, a LocalRecognizer, and a chunk Splitter.
package trace
