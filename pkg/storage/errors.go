package storage

import (
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// Configuration and input errors.
var (
	ErrInvalidConfig = errors.New("storage: invalid configuration")
	ErrInvalidKey    = errors.New("storage: invalid key")
)

// Backend errors. Callers match these with errors.Is; the backend's own
// error is kept as text only.
var (
	ErrNotFound     = errors.New("storage: file not found")
	ErrAccessDenied = errors.New("storage: access denied")
	ErrUploadFailed = errors.New("storage: upload failed")
	ErrDeleteFailed = errors.New("storage: delete failed")
	ErrListFailed   = errors.New("storage: list failed")
)

var s3ErrorCodes = map[string]error{
	"NoSuchKey":             ErrNotFound,
	"NoSuchBucket":          ErrNotFound,
	"NotFound":              ErrNotFound,
	"AccessDenied":          ErrAccessDenied,
	"Forbidden":             ErrAccessDenied,
	"InvalidAccessKeyId":    ErrAccessDenied,
	"SignatureDoesNotMatch": ErrAccessDenied,
}

// wrapS3Error classifies an S3 failure, falling back to op.
func wrapS3Error(err, op error) error {
	sentinel := op
	var apiErr smithy.APIError
	var noKey *types.NoSuchKey
	switch {
	case errors.As(err, &noKey):
		sentinel = ErrNotFound
	case errors.As(err, &apiErr):
		if mapped, ok := s3ErrorCodes[apiErr.ErrorCode()]; ok {
			sentinel = mapped
		}
	}
	return fmt.Errorf("%w: %v", sentinel, err)
}
