// internal/blob/blobtest/s3.go

// Package blobtest provides an in-process S3 endpoint for tests.
package blobtest

import (
	"bufio"
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"shelfsort/internal/blob"
)

// Object is an upload received by the fake server.
type Object struct {
	Body        []byte
	ContentType string
}

// S3Server answers path-style PutObject requests over plain http and keeps
// the uploaded objects in memory, keyed by "bucket/key".
type S3Server struct {
	*httptest.Server

	mu      sync.Mutex
	objects map[string]Object
}

// NewS3Server starts a fake S3 endpoint that is closed when t finishes.
func NewS3Server(t testing.TB) *S3Server {
	t.Helper()
	s := &S3Server{objects: map[string]Object{}}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

// Config returns sink settings pointing at the server.
func (s *S3Server) Config(bucket string) blob.S3Config {
	return blob.S3Config{
		Bucket:          bucket,
		Region:          "us-east-1",
		Endpoint:        s.URL,
		PathStyle:       true,
		AccessKeyID:     "AKIA",
		SecretAccessKey: "SECRET",
	}
}

// Object returns the upload stored under bucket/key.
func (s *S3Server) Object(bucket, key string) (Object, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[bucket+"/"+key]
	return obj, ok
}

func (s *S3Server) serve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		w.WriteHeader(http.StatusNotImplemented)
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if strings.Contains(r.Header.Get("Content-Encoding"), "aws-chunked") {
		if body, err = decodeChunked(body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
	}

	s.mu.Lock()
	s.objects[strings.TrimPrefix(r.URL.Path, "/")] = Object{Body: body, ContentType: r.Header.Get("Content-Type")}
	s.mu.Unlock()

	w.Header().Set("ETag", `"etag"`)
	w.WriteHeader(http.StatusOK)
}

// decodeChunked strips aws-chunked framing: <hex size>[;ext]\r\n<data>\r\n
// repeated until a zero sized chunk, followed by optional trailers.
func decodeChunked(b []byte) ([]byte, error) {
	var out bytes.Buffer
	rd := bufio.NewReader(bytes.NewReader(b))
	for {
		line, err := rd.ReadString('\n')
		if err != nil {
			return nil, err
		}
		sizeHex, _, _ := strings.Cut(strings.TrimSpace(line), ";")
		size, err := strconv.ParseInt(sizeHex, 16, 64)
		if err != nil {
			return nil, err
		}
		if size == 0 {
			return out.Bytes(), nil
		}
		if _, err := io.CopyN(&out, rd, size); err != nil {
			return nil, err
		}
		if _, err := rd.Discard(2); err != nil {
			return nil, err
		}
	}
}
