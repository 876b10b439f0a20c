// Package align correlates a reference recording with a capture of it.
//
// The reference session decodes every frame, reads its identifier and
// records the first occurrence of each marked code. The capture session then
// starts, after the reference reached end of stream, and consumes codes from
// the recorded set. Codes left over were dropped in the capture path.
//
//	report, err := align.Run(ctx, align.Config{
//		Reference: "file:///data/ref.mp4",
//		Capture:   "file:///data/cap.mp4",
//	})
//	fmt.Println(report.Result.MissingFromCapture)
package align
