package ingest

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"parking-service/internal/model"
	"parking-service/internal/repository"
	"parking-service/internal/service"
)

func snapshot(t *testing.T, content string) *multipart.FileHeader {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("image", "snapshot.JPG")
	if err != nil {
		t.Fatalf("create file: %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	form, err := multipart.NewReader(&body, writer.Boundary()).ReadForm(1 << 20)
	if err != nil {
		t.Fatalf("read form: %v", err)
	}
	t.Cleanup(func() { _ = form.RemoveAll() })
	return form.File["image"][0]
}

func newDecoder(t *testing.T) (*Decoder, string) {
	t.Helper()
	root := t.TempDir()
	store, err := NewDiskImageStore(root)
	if err != nil {
		t.Fatalf("image store: %v", err)
	}
	return NewDecoder(store, 1<<20), root
}

func storedFiles(t *testing.T, root string) int {
	t.Helper()
	count := 0
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			count++
		}
		return nil
	})
	if err != nil {
		t.Fatalf("walk image root: %v", err)
	}
	return count
}

func TestFromForm(t *testing.T) {
	eventTime := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	cases := []struct {
		name      string
		form      CameraForm
		wantPlate string
	}{
		{name: "number_plate", form: CameraForm{NumberPlate: " 01A123BC "}, wantPlate: "01A123BC"},
		{name: "plate alias", form: CameraForm{Plate: "01 A 123 BC"}, wantPlate: "01 A 123 BC"},
		{name: "number_plate wins", form: CameraForm{NumberPlate: "01A123BC", Plate: "99Z999ZZ"}, wantPlate: "01A123BC"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.form.CameraID = "gate-1"
			tc.form.EventTime = eventTime

			capture := FromForm(model.CameraDirectionEntry, tc.form, nil)
			if capture.Plate != tc.wantPlate {
				t.Fatalf("plate = %q, want %q", capture.Plate, tc.wantPlate)
			}
			if capture.CameraID != "gate-1" || !capture.EventTime.Equal(eventTime) {
				t.Fatalf("unexpected capture %+v", capture)
			}
			if capture.Raw["event_time"] != "2026-03-01T10:00:00Z" || capture.Raw["camera_id"] != "gate-1" {
				t.Fatalf("raw payload %v", capture.Raw)
			}
		})
	}
}

func TestDecodeStoresSnapshot(t *testing.T) {
	decoder, root := newDecoder(t)

	capture := FromForm(model.CameraDirectionEntry, CameraForm{NumberPlate: "01A123BC"}, snapshot(t, "fake jpeg bytes"))
	trigger, err := decoder.Decode(context.Background(), capture)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.HasPrefix(trigger.ImageRef, "entry/") || !strings.HasSuffix(trigger.ImageRef, ".jpg") {
		t.Fatalf("unexpected image ref %q", trigger.ImageRef)
	}
	stored, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(trigger.ImageRef)))
	if err != nil {
		t.Fatalf("read stored image: %v", err)
	}
	if string(stored) != "fake jpeg bytes" {
		t.Fatalf("stored image content mismatch")
	}
}

func TestDecodePayload(t *testing.T) {
	decoder, _ := newDecoder(t)

	capture := FromPayload(model.CameraDirectionExit, EventPayload{
		CameraID:    "gate-2",
		Plate:       "01A123BC",
		Confidence:  0.93,
		Direction:   "exit",
		EventTime:   time.Date(2026, 3, 1, 15, 0, 0, 0, time.FixedZone("UTC+5", 5*3600)),
		SnapshotURL: "https://cams.local/snap/1.jpg",
		RawPayload:  map[string]interface{}{"lane": 2},
	})
	trigger, err := decoder.Decode(context.Background(), capture)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if trigger.ImageRef != "https://cams.local/snap/1.jpg" || trigger.CameraID == nil || *trigger.CameraID != "gate-2" {
		t.Fatalf("unexpected trigger %+v", trigger)
	}
	if !trigger.EventTime.Equal(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)) || trigger.EventTime.Location() != time.UTC {
		t.Fatalf("event time = %s", trigger.EventTime)
	}
	if trigger.Raw["lane"] != 2 || trigger.Raw["direction"] != "exit" {
		t.Fatalf("raw payload %v", trigger.Raw)
	}
}

func TestDecodeRejectsBeforeStoringImage(t *testing.T) {
	cases := []struct {
		name    string
		capture func(t *testing.T) Capture
	}{
		{name: "empty plate", capture: func(t *testing.T) Capture {
			return FromForm(model.CameraDirectionEntry, CameraForm{}, snapshot(t, "jpeg"))
		}},
		{name: "plate of separators only", capture: func(t *testing.T) Capture {
			return FromForm(model.CameraDirectionEntry, CameraForm{NumberPlate: "- -"}, snapshot(t, "jpeg"))
		}},
		{name: "separators in json payload", capture: func(t *testing.T) Capture {
			return FromPayload(model.CameraDirectionExit, EventPayload{Plate: " - ", SnapshotURL: "https://cams.local/snap/2.jpg"})
		}},
		{name: "missing image", capture: func(t *testing.T) Capture {
			return FromForm(model.CameraDirectionEntry, CameraForm{NumberPlate: "01A123BC"}, nil)
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			decoder, root := newDecoder(t)
			trigger, err := decoder.Decode(context.Background(), tc.capture(t))
			if !errors.Is(err, service.ErrDecode) {
				t.Fatalf("expected ErrDecode, got %v", err)
			}
			if trigger == nil {
				t.Fatal("partial trigger must be returned for the audit log")
			}
			if n := storedFiles(t, root); n != 0 {
				t.Fatalf("stored %d images for a rejected capture", n)
			}
		})
	}
}

func TestDecodeRejectsOversizedImage(t *testing.T) {
	root := t.TempDir()
	store, err := NewDiskImageStore(root)
	if err != nil {
		t.Fatalf("image store: %v", err)
	}
	decoder := NewDecoder(store, 4)

	capture := FromForm(model.CameraDirectionEntry, CameraForm{NumberPlate: "01A123BC"}, snapshot(t, "too many bytes"))
	if _, err := decoder.Decode(context.Background(), capture); !errors.Is(err, service.ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
	if n := storedFiles(t, root); n != 0 {
		t.Fatalf("stored %d images for an oversized capture", n)
	}
}

func TestAdapterRecordsEveryTrigger(t *testing.T) {
	log := zerolog.Nop()
	sessions := repository.NewMemorySessionRepository()
	reports := service.NewReports(sessions, time.UTC)
	resolver := service.NewPolicyResolver(repository.NewMemoryCarPolicyRepository(), nil, log)
	manager := service.NewSessionManager(sessions, resolver, reports, nil, service.BillingConfig{HourlyRate: 10000}, log)
	events := repository.NewMemoryCameraEventRepository()

	decoder, root := newDecoder(t)
	adapter := NewAdapter(decoder, manager, events, log)
	ctx := context.Background()

	entry := func(plate string) Capture {
		return FromForm(model.CameraDirectionEntry, CameraForm{NumberPlate: plate}, snapshot(t, "jpeg"))
	}

	result, err := adapter.Handle(ctx, entry("01a-123bc"))
	if err != nil {
		t.Fatalf("entry: %v", err)
	}
	if result.Plate != "01A123BC" || !result.Session.IsOpen() {
		t.Fatalf("unexpected result %+v", result)
	}

	if _, err := adapter.Handle(ctx, entry("01A123BC")); !errors.Is(err, service.ErrDuplicateOpenSession) {
		t.Fatalf("expected duplicate open session, got %v", err)
	}
	if _, err := adapter.Handle(ctx, entry("- -")); !errors.Is(err, service.ErrDecode) {
		t.Fatalf("expected decode error, got %v", err)
	}
	if err := adapter.RejectMalformed(ctx, model.CameraDirectionExit, errors.New("bad body")); !errors.Is(err, service.ErrDecode) {
		t.Fatalf("expected decode error, got %v", err)
	}

	recorded, err := events.ListRecent(ctx, nil, 10)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	want := []string{OutcomeDecodeError, OutcomeDecodeError, OutcomeRejected, OutcomeAccepted}
	if len(recorded) != len(want) {
		t.Fatalf("recorded %d events, want %d", len(recorded), len(want))
	}
	for i, outcome := range want {
		if recorded[i].Outcome != outcome {
			t.Fatalf("event %d outcome = %s, want %s", i, recorded[i].Outcome, outcome)
		}
	}
	for _, i := range []int{0, 1} {
		if recorded[i].Reason == nil || *recorded[i].Reason != "decode-error" {
			t.Fatalf("event %d reason = %v", i, recorded[i].Reason)
		}
		if recorded[i].ImageRef != nil {
			t.Fatalf("event %d stored image %s for an undecodable trigger", i, *recorded[i].ImageRef)
		}
	}
	if recorded[0].Direction != model.CameraDirectionExit {
		t.Fatalf("malformed body recorded as %s", recorded[0].Direction)
	}

	rejected := recorded[2]
	if rejected.ImageRef == nil {
		t.Fatal("rejected trigger lost its snapshot reference")
	}
	if _, err := os.Stat(filepath.Join(root, filepath.FromSlash(*rejected.ImageRef))); err != nil {
		t.Fatalf("rejected snapshot missing from store: %v", err)
	}
	if recorded[3].SessionID == nil || *recorded[3].SessionID != result.Session.ID {
		t.Fatalf("accepted event not linked to session")
	}
}
