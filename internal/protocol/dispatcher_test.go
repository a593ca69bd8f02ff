package protocol

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/muurk/photorelay/internal/imagestore"
	"github.com/muurk/photorelay/internal/relayerr"
)

type replyMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func decodeReply(t *testing.T, frame *Frame) replyMessage {
	t.Helper()
	if frame == nil {
		t.Fatal("expected a reply frame, got none")
	}
	if frame.Kind != KindText {
		t.Fatalf("reply kind = %v, want text", frame.Kind)
	}
	var msg replyMessage
	if err := json.Unmarshal(frame.Payload, &msg); err != nil {
		t.Fatalf("reply is not JSON: %v (%s)", err, frame.Payload)
	}
	return msg
}

func TestParseMode(t *testing.T) {
	for _, in := range []string{"inline", "disk", "log", " Disk "} {
		if _, err := ParseMode(in); err != nil {
			t.Errorf("ParseMode(%q) error = %v", in, err)
		}
	}
	if _, err := ParseMode("broadcast"); err == nil {
		t.Error("ParseMode(broadcast) should fail")
	}
}

func TestInlineDispatcher_UploadThenDownload(t *testing.T) {
	d := NewInlineDispatcher(imagestore.NewMemoryStore())
	ctx := context.Background()

	for want := 0; want < 2; want++ {
		reply, err := d.Dispatch(ctx, "s1", Text([]byte(`{"type":"UPIMG","payload":"<bytes>"}`)))
		if err != nil {
			t.Fatalf("Dispatch(UPIMG) error = %v", err)
		}
		msg := decodeReply(t, reply)
		if msg.Type != TypeImageUploaded {
			t.Errorf("reply type = %q, want IMGUP", msg.Type)
		}
		if string(msg.Payload) != fmt.Sprint(want) {
			t.Errorf("reply payload = %s, want %d", msg.Payload, want)
		}
	}

	reply, err := d.Dispatch(ctx, "s2", Text([]byte(`{"type":"DOWNIMG","payload":0}`)))
	if err != nil {
		t.Fatalf("Dispatch(DOWNIMG) error = %v", err)
	}
	msg := decodeReply(t, reply)
	if msg.Type != TypeImageDownloaded {
		t.Errorf("reply type = %q, want IMGDOWN", msg.Type)
	}
	var image string
	if err := json.Unmarshal(msg.Payload, &image); err != nil {
		t.Fatalf("IMGDOWN payload is not a string: %s", msg.Payload)
	}
	if image != "<bytes>" {
		t.Errorf("reply payload = %q, want the uploaded string", image)
	}
}

func TestInlineDispatcher_DownloadUnknownID(t *testing.T) {
	d := NewInlineDispatcher(imagestore.NewMemoryStore())

	reply, err := d.Dispatch(context.Background(), "s1", Text([]byte(`{"type":"DOWNIMG","payload":999}`)))
	if reply != nil {
		t.Errorf("expected no reply, got %s", reply.Payload)
	}
	if !relayerr.IsNotFound(err) {
		t.Errorf("error = %v, want NotFound", err)
	}
}

func TestDispatcher_SilentCases(t *testing.T) {
	tests := []struct {
		name    string
		mode    Mode
		frame   Frame
		wantErr func(error) bool
	}{
		{"malformed json", ModeInline, Text([]byte(`{"type":`)), relayerr.IsProtocol},
		{"missing type", ModeInline, Text([]byte(`{"payload":1}`)), relayerr.IsProtocol},
		{"upload with numeric payload", ModeInline, Text([]byte(`{"type":"UPIMG","payload":5}`)), relayerr.IsProtocol},
		{"download with bad id", ModeInline, Text([]byte(`{"type":"DOWNIMG","payload":"x"}`)), relayerr.IsProtocol},
		{"unknown type inline", ModeInline, Text([]byte(`{"type":"CHAT","payload":"hi"}`)), nil},
		{"binary in inline mode", ModeInline, Binary([]byte{1, 2, 3}), nil},
		{"upload text in disk mode", ModeDisk, Text([]byte(`{"type":"UPIMG","payload":"abc"}`)), nil},
		{"download missing file", ModeDisk, Text([]byte(`{"type":"DOWNIMG","payload":"img-none.png"}`)), relayerr.IsNotFound},
		{"download traversal", ModeDisk, Text([]byte(`{"type":"DOWNIMG","payload":"../etc/passwd"}`)), relayerr.IsNotFound},
		{"download numeric name", ModeDisk, Text([]byte(`{"type":"DOWNIMG","payload":3}`)), relayerr.IsProtocol},
		{"log mode text", ModeLog, Text([]byte(`{"type":"UPIMG","payload":"abc"}`)), nil},
		{"log mode garbage", ModeLog, Text([]byte(`not json at all`)), nil},
		{"log mode binary", ModeLog, Binary([]byte{0xff}), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDispatcher(t, tt.mode)

			reply, err := d.Dispatch(context.Background(), "s1", tt.frame)
			if reply != nil {
				t.Errorf("expected no reply, got %s", reply.Payload)
			}
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Dispatch() error = %v, want nil", err)
				}
				return
			}
			if !tt.wantErr(err) {
				t.Errorf("Dispatch() error = %v, wrong classification", err)
			}
		})
	}
}

func TestDiskDispatcher_BinaryUploadThenDownload(t *testing.T) {
	d := newTestDispatcher(t, ModeDisk)
	ctx := context.Background()
	image := make([]byte, 4096)

	reply, err := d.Dispatch(ctx, "s1", Binary(image))
	if err != nil {
		t.Fatalf("Dispatch(binary) error = %v", err)
	}
	msg := decodeReply(t, reply)
	if msg.Type != TypeImageUploaded {
		t.Fatalf("reply type = %q, want IMGUP", msg.Type)
	}
	var name string
	if err := json.Unmarshal(msg.Payload, &name); err != nil || name == "" {
		t.Fatalf("IMGUP payload = %s, want a file name", msg.Payload)
	}

	request, _ := json.Marshal(map[string]string{"type": TypeDownloadImage, "payload": name})
	reply, err = d.Dispatch(ctx, "s2", Text(request))
	if err != nil {
		t.Fatalf("Dispatch(DOWNIMG) error = %v", err)
	}
	if reply == nil || reply.Kind != KindBinary {
		t.Fatalf("DOWNIMG reply = %v, want a binary frame", reply)
	}
	if !bytes.Equal(reply.Payload, image) {
		t.Errorf("downloaded %d bytes, want the 4096 uploaded bytes", len(reply.Payload))
	}
}

type failingDiskStore struct{}

func (failingDiskStore) Put(context.Context, []byte) (string, error) {
	return "", relayerr.NewStorageError("failed to write image", errors.New("no space left on device"))
}

func (failingDiskStore) GetByName(context.Context, string) ([]byte, error) {
	return nil, relayerr.NewStorageError("failed to read image", errors.New("input/output error"))
}

func TestDiskDispatcher_StorageFailure(t *testing.T) {
	d := NewDiskDispatcher(failingDiskStore{})

	reply, err := d.Dispatch(context.Background(), "s1", Binary([]byte{1}))
	if reply != nil {
		t.Errorf("expected no reply on storage failure, got %s", reply.Payload)
	}
	if !relayerr.IsStorage(err) {
		t.Errorf("error = %v, want Storage", err)
	}
}

func TestDispatcher_Mode(t *testing.T) {
	if NewLogDispatcher().Mode() != ModeLog {
		t.Error("log dispatcher reports wrong mode")
	}
	if NewInlineDispatcher(imagestore.NewMemoryStore()).Mode() != ModeInline {
		t.Error("inline dispatcher reports wrong mode")
	}
}

func newTestDispatcher(t *testing.T, mode Mode) *Dispatcher {
	t.Helper()
	switch mode {
	case ModeInline:
		return NewInlineDispatcher(imagestore.NewMemoryStore())
	case ModeDisk:
		store, err := imagestore.NewDiskStore(t.TempDir(), "")
		if err != nil {
			t.Fatalf("NewDiskStore() error = %v", err)
		}
		return NewDiskDispatcher(store)
	default:
		return NewLogDispatcher()
	}
}
