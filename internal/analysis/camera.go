package analysis

import (
	"fmt"
	"regexp"
	"strings"
)

// cameraPattern matches "Cam" followed by exactly two digits.
var cameraPattern = regexp.MustCompile(`Cam\d{2}`)

// DefaultCameraSlots is the number of camera slots in a standard survey grid.
const DefaultCameraSlots = 32

// ExtractCameraID returns the first "CamNN" substring of label, or "" when the
// label carries no camera identifier.
func ExtractCameraID(label string) string {
	return cameraPattern.FindString(label)
}

// CameraSlots enumerates the fixed slot identifiers Cam01..CamNN.
func CameraSlots(n int) []string {
	if n < 1 {
		return nil
	}
	slots := make([]string, n)
	for i := range slots {
		slots[i] = fmt.Sprintf("Cam%02d", i+1)
	}
	return slots
}

// slotsInLabel returns every slot identifier that appears anywhere in label.
// Matching is plain substring containment, so "Cam012" also matches "Cam01".
func slotsInLabel(label string, slots []string) []string {
	var found []string
	for _, slot := range slots {
		if strings.Contains(label, slot) {
			found = append(found, slot)
		}
	}
	return found
}
