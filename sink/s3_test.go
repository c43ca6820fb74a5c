package sink

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/drunlade/go-ymodem/ymodem"
)

type fakePutter struct {
	bucket, key string
	body        []byte
	length      int64
	err         error
	calls       int
}

func (f *fakePutter) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	f.bucket = aws.ToString(in.Bucket)
	f.key = aws.ToString(in.Key)
	f.length = aws.ToInt64(in.ContentLength)
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.body = body
	return &s3.PutObjectOutput{}, nil
}

func TestS3Upload(t *testing.T) {
	put := &fakePutter{}
	s := newS3(context.Background(), S3Config{Bucket: "firmware", Prefix: "incoming/dev1"}, put)

	send(t, s,
		ymodem.FileEvent{Kind: ymodem.FileEventName, Name: "../app.bin", Size: 5},
		ymodem.FileEvent{Kind: ymodem.FileEventData, Data: padded("image")},
		ymodem.FileEvent{Kind: ymodem.FileEventEnd},
	)

	if put.bucket != "firmware" || put.key != "incoming/dev1/app.bin" {
		t.Errorf("put %s/%s", put.bucket, put.key)
	}
	if string(put.body) != "image" || put.length != 5 {
		t.Errorf("body %q, length %d", put.body, put.length)
	}
	if s.Location() != "s3://firmware/incoming/dev1/app.bin" {
		t.Errorf("location = %q", s.Location())
	}
}

func TestS3AbortSkipsUpload(t *testing.T) {
	put := &fakePutter{}
	s := newS3(context.Background(), S3Config{Bucket: "b"}, put)

	send(t, s,
		ymodem.FileEvent{Kind: ymodem.FileEventName, Name: "a.bin", Size: 5},
		ymodem.FileEvent{Kind: ymodem.FileEventData, Data: padded("abcde")},
		ymodem.FileEvent{Kind: ymodem.FileEventAborted},
	)
	if put.calls != 0 {
		t.Errorf("uploaded an aborted file")
	}
	if err := s.HandleFileEvent(ymodem.FileEvent{Kind: ymodem.FileEventData, Data: padded("x")}); !errors.Is(err, ErrNoFile) {
		t.Errorf("data after abort: %v", err)
	}
}

func TestS3UploadFailure(t *testing.T) {
	put := &fakePutter{err: errors.New("access denied")}
	s := newS3(context.Background(), S3Config{Bucket: "b"}, put)

	send(t, s,
		ymodem.FileEvent{Kind: ymodem.FileEventName, Name: "a.bin", Size: 1},
		ymodem.FileEvent{Kind: ymodem.FileEventData, Data: padded("a")},
	)
	if err := s.HandleFileEvent(ymodem.FileEvent{Kind: ymodem.FileEventEnd}); err == nil {
		t.Fatal("expected upload error")
	}
	if s.Err() == nil || s.Location() != "" {
		t.Errorf("err %v, location %q", s.Err(), s.Location())
	}
}

func TestS3Limits(t *testing.T) {
	s := newS3(context.Background(), S3Config{Bucket: "b", MaxSize: 64}, &fakePutter{})
	err := s.HandleFileEvent(ymodem.FileEvent{Kind: ymodem.FileEventName, Name: "a.bin", Size: 65})
	if !errors.Is(err, ErrTooLarge) {
		t.Errorf("err = %v", err)
	}
}

func TestParseS3Path(t *testing.T) {
	tests := []struct{ in, bucket, prefix string }{
		{"bucket", "bucket", ""},
		{"bucket/a/b", "bucket", "a/b"},
	}
	for _, tt := range tests {
		b, p := ParseS3Path(tt.in)
		if b != tt.bucket || p != tt.prefix {
			t.Errorf("ParseS3Path(%q) = %q, %q", tt.in, b, p)
		}
	}

	cfg := S3Config{}
	if cfg.Validate() == nil {
		t.Error("empty bucket accepted")
	}
}
