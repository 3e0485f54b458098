package tracking

import "fmt"

// Key builds the record key for a track. A negative chunk index yields the
// unchunked form "t<id>"; otherwise "c<chunk>-t<id>".
func Key(chunkIndex, trackID int) string {
	if chunkIndex < 0 {
		return fmt.Sprintf("t%d", trackID)
	}
	return fmt.Sprintf("c%d-t%d", chunkIndex, trackID)
}
