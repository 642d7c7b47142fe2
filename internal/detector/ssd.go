package detector

// decodeSSD shapes the four output tensors of an SSD style detection model
// into detections. boxes holds normalized [ymin, xmin, ymax, xmax] quadruples;
// they are scaled back to a width x height source image.
func decodeSSD(boxes, classes, scores []float32, count, width, height int, labels *LabelMap) []Detection {
	n := count
	if n > len(scores) {
		n = len(scores)
	}
	if n > len(classes) {
		n = len(classes)
	}
	if n > len(boxes)/4 {
		n = len(boxes) / 4
	}

	w, h := float32(width), float32(height)
	detections := make([]Detection, 0, n)
	for i := 0; i < n; i++ {
		ymin, xmin, ymax, xmax := boxes[4*i], boxes[4*i+1], boxes[4*i+2], boxes[4*i+3]
		detections = append(detections, Detection{
			BoundingBox: BoundingBox{
				Left:   clamp01(xmin) * w,
				Top:    clamp01(ymin) * h,
				Right:  clamp01(xmax) * w,
				Bottom: clamp01(ymax) * h,
			},
			Categories: []Category{{
				Label: labels.Label(int(classes[i])),
				Score: scores[i],
			}},
		})
	}
	return detections
}

func clamp01(v float32) float32 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
