// Package quality implements the sharpness gate applied to vehicle crops
// before they can replace a track's golden frame.
package quality
