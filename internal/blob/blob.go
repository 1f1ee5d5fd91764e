// internal/blob/blob.go

// Package blob provides destinations for catalog exports.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// Driver identifies a concrete sink implementation.
type Driver string

const (
	DriverFilesystem Driver = "fs"
	DriverS3         Driver = "s3"
)

var ErrUnknownDriver = errors.New("blob: unknown driver")

// Sink stores export artifacts under a key and reports where they went.
type Sink interface {
	Put(ctx context.Context, key string, r io.Reader, contentType string) (location string, err error)
	Driver() Driver
}

// Open returns the sink for driver. dir roots the filesystem sink and
// s3cfg configures the S3 sink.
func Open(ctx context.Context, driver Driver, dir string, s3cfg S3Config) (Sink, error) {
	switch driver {
	case DriverFilesystem:
		sink, err := NewFileSink(dir)
		if err != nil {
			return nil, err
		}
		return sink, nil
	case DriverS3:
		sink, err := NewS3Sink(ctx, s3cfg)
		if err != nil {
			return nil, err
		}
		return sink, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
}
