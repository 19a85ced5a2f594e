// Package captions draws word-highlighted captions onto decoded video frames.
//
// Each active segment is centred near the bottom of the frame over a solid
// box sized to the full segment text. Words are laid out left to right and the
// word being spoken is drawn in the highlight color. Glyphs come from a fixed
// bitmap face and are scaled with nearest-neighbour resampling so output is
// deterministic across hosts.
package captions
