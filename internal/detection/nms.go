package detection

import "sort"

// DefaultIoUThreshold is the overlap above which a lower-scored box is dropped.
const DefaultIoUThreshold = 0.5

// Suppress runs greedy non-maximum suppression across all labels.
//
// Detections are visited in descending confidence; each one is kept unless it
// overlaps an already kept detection with IoU above iouThreshold. A digit box
// can therefore suppress an overlapping "analog" or "digital" box. The result
// is in confidence-descending order and the input slice is not modified.
func Suppress(detections []BoxDetection, iouThreshold float64) []BoxDetection {
	sorted := make([]BoxDetection, len(detections))
	copy(sorted, detections)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Confidence > sorted[j].Confidence
	})

	kept := make([]BoxDetection, 0, len(sorted))
	for _, d := range sorted {
		suppressed := false
		for _, k := range kept {
			if IoU(d.Box, k.Box) > iouThreshold {
				suppressed = true
				break
			}
		}
		if !suppressed {
			kept = append(kept, d)
		}
	}
	return kept
}

// SuppressByLabel runs Suppress separately for every label, so boxes only
// compete with boxes of the same class. The merged result is in
// confidence-descending order.
func SuppressByLabel(detections []BoxDetection, iouThreshold float64) []BoxDetection {
	groups := make(map[string][]BoxDetection)
	order := make([]string, 0)
	for _, d := range detections {
		if _, ok := groups[d.Label]; !ok {
			order = append(order, d.Label)
		}
		groups[d.Label] = append(groups[d.Label], d)
	}

	kept := make([]BoxDetection, 0, len(detections))
	for _, label := range order {
		kept = append(kept, Suppress(groups[label], iouThreshold)...)
	}
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Confidence > kept[j].Confidence
	})
	return kept
}
