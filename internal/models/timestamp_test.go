package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestTimestampUnmarshal(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  time.Time
	}{
		{name: "rfc3339", input: `"2024-03-01T10:00:00Z"`, want: time.Date(2024, time.March, 1, 10, 0, 0, 0, time.UTC)},
		{name: "naive", input: `"2024-03-01T10:00:00.250000"`, want: time.Date(2024, time.March, 1, 10, 0, 0, 250000000, time.UTC)},
		{name: "null", input: `null`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var ts Timestamp
			if err := json.Unmarshal([]byte(tc.input), &ts); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if !ts.Equal(tc.want) {
				t.Fatalf("got %v want %v", ts.Time, tc.want)
			}
		})
	}
}

func TestTimestampUnmarshalRejectsGarbage(t *testing.T) {
	var ts Timestamp
	if err := json.Unmarshal([]byte(`"yesterday"`), &ts); err == nil {
		t.Fatal("expected error for unparseable timestamp")
	}
}

func TestVideoResultsDecode(t *testing.T) {
	payload := `{"video_id":"abc","filename":"clip.mp4","status":"completed","fps":29.97,"total_frames":10,
		"detected_objects":[{"frame_number":1,"timestamp":0.5,"object_class":"car","confidence":0.9,"bbox":{"x1":1,"y1":2,"x2":3,"y2":4}}],
		"extracted_texts":[{"frame_number":2,"timestamp":1.0,"text":"STOP","confidence":0.8}],
		"created_at":"2024-03-01T10:00:00","completed_at":null}`

	var results VideoResults
	if err := json.Unmarshal([]byte(payload), &results); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if results.Duration != nil {
		t.Fatalf("expected nil duration got %v", *results.Duration)
	}
	if results.FPS == nil || *results.FPS != 29.97 {
		t.Fatalf("unexpected fps: %v", results.FPS)
	}
	if len(results.DetectedObjects) != 1 || results.DetectedObjects[0].BBox.X2 != 3 {
		t.Fatalf("unexpected detections: %+v", results.DetectedObjects)
	}
	if results.CompletedAt != nil {
		t.Fatalf("expected nil completed_at got %v", results.CompletedAt)
	}
}
