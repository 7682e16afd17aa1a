package ingest

import (
	"context"
	"fmt"
	"mime/multipart"
	"strings"
	"time"

	"parking-service/internal/model"
	"parking-service/internal/service"
	"parking-service/internal/utils"
)

// Trigger is a decoded camera event.
type Trigger struct {
	Direction  model.CameraDirection
	Plate      string
	ImageRef   string
	CameraID   *string
	EventTime  time.Time
	Confidence float64
	Raw        map[string]interface{}
}

// EventPayload is the JSON body sent by ANPR cameras.
type EventPayload struct {
	CameraID    string                 `json:"camera_id"`
	Plate       string                 `json:"plate" binding:"required"`
	Confidence  float64                `json:"confidence"`
	Direction   string                 `json:"direction"`
	EventTime   time.Time              `json:"event_time"`
	SnapshotURL string                 `json:"snapshot_url" binding:"required"`
	RawPayload  map[string]interface{} `json:"raw_payload,omitempty"`
}

// CameraForm is the multipart body sent by gate cameras. The snapshot travels
// as a file part named "image" or "<direction>_image".
type CameraForm struct {
	NumberPlate string    `form:"number_plate" binding:"required_without=Plate"`
	Plate       string    `form:"plate"`
	CameraID    string    `form:"camera_id"`
	EventTime   time.Time `form:"event_time" time_format:"2006-01-02T15:04:05Z07:00"`
}

// Capture is a bound camera request, independent of how it arrived.
type Capture struct {
	Direction   model.CameraDirection
	Plate       string
	CameraID    string
	EventTime   time.Time
	Confidence  float64
	Image       *multipart.FileHeader
	SnapshotURL string
	Raw         map[string]interface{}
}

func FromForm(direction model.CameraDirection, form CameraForm, image *multipart.FileHeader) Capture {
	plate := strings.TrimSpace(form.NumberPlate)
	if plate == "" {
		plate = strings.TrimSpace(form.Plate)
	}

	raw := map[string]interface{}{}
	for key, value := range map[string]string{
		"number_plate": form.NumberPlate,
		"plate":        form.Plate,
		"camera_id":    form.CameraID,
	} {
		if value != "" {
			raw[key] = value
		}
	}
	if !form.EventTime.IsZero() {
		raw["event_time"] = form.EventTime.Format(time.RFC3339)
	}

	return Capture{
		Direction: direction,
		Plate:     plate,
		CameraID:  strings.TrimSpace(form.CameraID),
		EventTime: form.EventTime,
		Image:     image,
		Raw:       raw,
	}
}

func FromPayload(direction model.CameraDirection, payload EventPayload) Capture {
	raw := map[string]interface{}{}
	for key, value := range payload.RawPayload {
		raw[key] = value
	}
	raw["direction"] = payload.Direction
	raw["confidence"] = payload.Confidence

	return Capture{
		Direction:   direction,
		Plate:       strings.TrimSpace(payload.Plate),
		CameraID:    strings.TrimSpace(payload.CameraID),
		EventTime:   payload.EventTime,
		Confidence:  payload.Confidence,
		SnapshotURL: strings.TrimSpace(payload.SnapshotURL),
		Raw:         raw,
	}
}

type Decoder struct {
	images    ImageStore
	maxUpload int64
	now       func() time.Time
}

func NewDecoder(images ImageStore, maxUploadBytes int64) *Decoder {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 10 << 20
	}
	return &Decoder{images: images, maxUpload: maxUploadBytes, now: time.Now}
}

// MaxUploadBytes caps the size of a camera request body.
func (d *Decoder) MaxUploadBytes() int64 {
	return d.maxUpload
}

// Decode validates a capture and stores its snapshot. A partially decoded
// trigger is returned alongside ErrDecode so callers can still log what
// arrived. The plate is checked before anything touches the image store.
func (d *Decoder) Decode(ctx context.Context, capture Capture) (*Trigger, error) {
	trigger := &Trigger{
		Direction:  capture.Direction,
		Plate:      capture.Plate,
		EventTime:  d.now().UTC(),
		Confidence: capture.Confidence,
		Raw:        capture.Raw,
	}
	if trigger.Raw == nil {
		trigger.Raw = map[string]interface{}{}
	}
	if capture.CameraID != "" {
		cameraID := capture.CameraID
		trigger.CameraID = &cameraID
	}
	if !capture.EventTime.IsZero() {
		trigger.EventTime = capture.EventTime.UTC()
	}

	if utils.NormalizePlate(trigger.Plate) == "" {
		return trigger, fmt.Errorf("%w: plate was not recognized", service.ErrDecode)
	}

	switch {
	case capture.Image != nil:
		ref, err := d.saveImage(ctx, capture.Direction, capture.Image)
		if err != nil {
			return trigger, err
		}
		trigger.ImageRef = ref
	case capture.SnapshotURL != "":
		trigger.ImageRef = capture.SnapshotURL
	default:
		return trigger, fmt.Errorf("%w: image is required", service.ErrDecode)
	}
	return trigger, nil
}

func (d *Decoder) saveImage(ctx context.Context, direction model.CameraDirection, header *multipart.FileHeader) (string, error) {
	if header.Size > d.maxUpload {
		return "", fmt.Errorf("%w: image exceeds %d bytes", service.ErrDecode, d.maxUpload)
	}

	file, err := header.Open()
	if err != nil {
		return "", fmt.Errorf("%w: unreadable image: %v", service.ErrDecode, err)
	}
	defer file.Close()

	return d.images.Save(ctx, string(direction), header.Filename, file)
}
