package detector

import "sort"

// Postprocess orders categories and detections by score, drops detections
// whose top score is below threshold and keeps at most maxResults of them.
// A non-positive maxResults keeps everything. The input slice is not modified.
func Postprocess(detections []Detection, threshold float32, maxResults int) []Detection {
	out := make([]Detection, 0, len(detections))
	for _, d := range detections {
		categories := make([]Category, len(d.Categories))
		copy(categories, d.Categories)
		sort.SliceStable(categories, func(a, b int) bool {
			return categories[a].Score > categories[b].Score
		})
		d.Categories = categories

		if len(categories) == 0 || categories[0].Score < threshold {
			continue
		}
		out = append(out, d)
	}

	sort.SliceStable(out, func(a, b int) bool {
		return out[a].TopCategory().Score > out[b].TopCategory().Score
	})

	if maxResults > 0 && len(out) > maxResults {
		out = out[:maxResults]
	}
	return out
}

// FilterExcluded drops detections whose top label is in exclude
func FilterExcluded(detections []Detection, exclude []string) []Detection {
	if len(exclude) == 0 {
		return detections
	}
	skip := make(map[string]struct{}, len(exclude))
	for _, label := range exclude {
		skip[label] = struct{}{}
	}

	out := make([]Detection, 0, len(detections))
	for _, d := range detections {
		if _, ok := skip[d.TopCategory().Label]; ok {
			continue
		}
		out = append(out, d)
	}
	return out
}

// Labels returns the top label of every detection, in order
func Labels(detections []Detection) []string {
	labels := make([]string, 0, len(detections))
	for _, d := range detections {
		labels = append(labels, d.TopCategory().Label)
	}
	return labels
}
