// Package detection turns raw object-detection output into an odometer reading.
//
// The odometer model is a single-stage detector with twelve classes: the ten
// digits "0" through "9" and the gauge types "analog" and "digital". For every
// anchor it emits a box in center form followed by one score per class.
//
// # Pipeline
//
// Processing one model output happens in three steps:
//
//  1. Parse: keep anchors whose best class score exceeds the confidence
//     threshold (0.3) and convert their boxes to corner form
//  2. Suppress: greedy non-maximum suppression at IoU 0.5, across all labels
//  3. Assemble: order the surviving digits left to right, join their labels
//     and average their confidences
//
// # Coordinate System
//
// Boxes are in model-input pixel space, i.e. on the square canvas the model
// was fed, not in the original photograph:
//   - Origin (0, 0) at top-left corner
//   - X increases rightward
//   - Y increases downward
//
// # Confidence Scores
//
// A detection's confidence is its best class score (0.0 to 1.0). The reading
// confidence is the arithmetic mean over digit detections only; gauge-type
// detections decide PredictionSummary.Type and nothing else.
package detection
