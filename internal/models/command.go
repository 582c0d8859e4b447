package models

import (
	"encoding/json"
	"fmt"
	"time"
)

type RunConditionType string

const (
	RunOnFaceDetected                    RunConditionType = "run_on_face_detected"
	RunOnFacesNoLongerDetected           RunConditionType = "run_on_faces_no_longer_detected"
	RunOnNoFacesDetected                 RunConditionType = "run_on_no_faces_detected"
	RunOnAnyFaceRecognized               RunConditionType = "run_on_any_face_recognized"
	RunOnSpecificFacesRecognized         RunConditionType = "run_on_specific_faces_recognized"
	RunOnAnyFaceNoLongerRecognized       RunConditionType = "run_on_any_face_no_longer_recognized"
	RunOnSpecificFacesNoLongerRecognized RunConditionType = "run_on_specific_faces_no_longer_recognized"
)

var runConditionTypes = []RunConditionType{
	RunOnFaceDetected,
	RunOnFacesNoLongerDetected,
	RunOnNoFacesDetected,
	RunOnAnyFaceRecognized,
	RunOnSpecificFacesRecognized,
	RunOnAnyFaceNoLongerRecognized,
	RunOnSpecificFacesNoLongerRecognized,
}

func (t RunConditionType) Valid() bool {
	for _, v := range runConditionTypes {
		if v == t {
			return true
		}
	}
	return false
}

// IsSpecific reports whether the condition only matches a listed set of faces.
func (t RunConditionType) IsSpecific() bool {
	return t == RunOnSpecificFacesRecognized || t == RunOnSpecificFacesNoLongerRecognized
}

func ParseRunConditionType(s string) (RunConditionType, error) {
	t := RunConditionType(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown run condition type %q", s)
	}
	return t, nil
}

// RunCondition binds a command to a transition. FacesToRecognize is only
// meaningful for the specific condition types.
type RunCondition struct {
	ID               int64            `json:"id" db:"id"`
	CommandID        int64            `json:"command_id" db:"command_id"`
	Type             RunConditionType `json:"run_condition_type" db:"run_condition_type"`
	FacesToRecognize []Face           `json:"faces_to_recognize"`
}

type Command struct {
	ID            int64           `json:"id" db:"id"`
	Name          string          `json:"name" db:"name"`
	Type          string          `json:"type" db:"type"`
	RunConditions []RunCondition  `json:"run_conditions"`
	Data          json.RawMessage `json:"data,omitempty" db:"data"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
}
