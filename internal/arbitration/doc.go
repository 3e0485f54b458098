// Package arbitration decides which plate read a record keeps when the local
// recognizer and the external classifier disagree.
//
// The default PlateValidator encodes the Indian registration format (state
// code series plus the BH series); other regions plug in their own validator.
// LocalPlateFilter screens raw local OCR text before it reaches a track.
package arbitration
