package pose

// DefaultScoreThreshold is the minimum detection confidence kept for
// triangulation.
const DefaultScoreThreshold = 0.7

// FilterByConfidence returns a copy of fs in which every observation with a
// score strictly below threshold is absent. Scores are left untouched so
// downstream aggregation still sees them.
func FilterByConfidence(fs *FrameSet, threshold float64) *FrameSet {
	out := fs.Clone()
	for f := range out.Points {
		for c := range out.Points[f] {
			for l := range out.Points[f][c] {
				if out.Scores[f][c][l] < threshold {
					out.Points[f][c][l] = Point2{}
				}
			}
		}
	}
	return out
}
