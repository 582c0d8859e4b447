package models

import (
	"fmt"
	"time"
)

type StatusType string

const (
	StatusNoFacesDetected         StatusType = "no_faces_detected"
	StatusFacesDetected           StatusType = "faces_detected"
	StatusFacesRecognized         StatusType = "faces_recognized"
	StatusFacesNoLongerDetected   StatusType = "faces_no_longer_detected"
	StatusFacesNoLongerRecognized StatusType = "faces_no_longer_recognized"
	StatusBrightnessTooLow        StatusType = "brightness_too_low"
)

var statusTypes = []StatusType{
	StatusNoFacesDetected,
	StatusFacesDetected,
	StatusFacesRecognized,
	StatusFacesNoLongerDetected,
	StatusFacesNoLongerRecognized,
	StatusBrightnessTooLow,
}

func (t StatusType) Valid() bool {
	for _, v := range statusTypes {
		if v == t {
			return true
		}
	}
	return false
}

func ParseStatusType(s string) (StatusType, error) {
	t := StatusType(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown status type %q", s)
	}
	return t, nil
}

// Status is one observed transition of the detection loop. It is never
// modified after it has been persisted.
type Status struct {
	ID              int64      `json:"id" db:"id"`
	Type            StatusType `json:"status_type" db:"status_type"`
	Time            time.Time  `json:"time" db:"observed_at"`
	Brightness      float64    `json:"brightness" db:"brightness"`
	RecognizedFaces []Face     `json:"recognized_faces"`
	SnapshotKey     string     `json:"snapshot_key,omitempty" db:"snapshot_key"`
}

// FacesOf returns the recognized faces of s, or nil when s is nil.
func FacesOf(s *Status) []Face {
	if s == nil {
		return nil
	}
	return s.RecognizedFaces
}
