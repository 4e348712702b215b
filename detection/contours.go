package detection

import (
	"towertracker/targeting"

	"gocv.io/x/gocv"
)

// ExtractContours returns one candidate per external blob in the mask. Holes
// inside a blob are not reported and boundaries are simplified, so only the
// bounding box of each candidate is meaningful. Order is unspecified.
func ExtractContours(mask gocv.Mat) []targeting.Candidate {
	contours := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	candidates := make([]targeting.Candidate, 0, contours.Size())
	for i := 0; i < contours.Size(); i++ {
		contour := contours.At(i)
		candidates = append(candidates, targeting.Candidate{
			Box:     gocv.BoundingRect(contour),
			Contour: contour.ToPoints(),
		})
	}
	return candidates
}
