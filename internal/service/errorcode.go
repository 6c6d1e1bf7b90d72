// Package service is the narrow facade the (unspecified) REST/gRPC surface
// would sit behind: it exposes the public operations of spec.md §6 —
// pipeline lifecycle, token ingestion, and discovery/insight sessions — as
// plain Go calls against pipeline.SemanticService and discovery.SessionTable,
// and maps every actor/pipeline/storage/discovery error kind onto the
// transport-agnostic ServiceErrorCode of spec.md §6/§7.
package service

import (
	"context"
	"errors"

	"github.com/latticeforge/veridian/internal/errs"
)

// ServiceErrorCode is the transport-agnostic status a caller of the public
// service surface sees, independent of whether that surface ends up being
// REST or gRPC (both are Non-goals; only the mapping itself is in scope).
type ServiceErrorCode int

const (
	CodeInternal ServiceErrorCode = iota
	CodeTimeout
	CodeUnavailable
	CodeNotFound
	CodeBadRequest
	CodeUnauthorized
	CodeMethodNotAllowed
	CodePayloadTooLarge
	CodeUnsupported
)

func (c ServiceErrorCode) String() string {
	switch c {
	case CodeInternal:
		return "Internal"
	case CodeTimeout:
		return "Timeout"
	case CodeUnavailable:
		return "Unavailable"
	case CodeNotFound:
		return "NotFound"
	case CodeBadRequest:
		return "BadRequest"
	case CodeUnauthorized:
		return "Unauthorized"
	case CodeMethodNotAllowed:
		return "MethodNotAllowed"
	case CodePayloadTooLarge:
		return "PayloadTooLarge"
	case CodeUnsupported:
		return "Unsupported"
	default:
		return "Internal"
	}
}

// MapError classifies err, drawn from any of the actor/pipeline/storage/
// discovery error kinds of spec.md §7, into the ServiceErrorCode a public
// surface would report. context.DeadlineExceeded and the actor package's
// own observation timeout both map to Timeout since callers of Ask/observe
// can't tell them apart meaningfully at this layer. Unrecognized errors map
// to Internal rather than leaking an unmapped kind to a caller.
func MapError(err error) ServiceErrorCode {
	if err == nil {
		return CodeInternal
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, errs.ErrObserveTimeout):
		return CodeTimeout

	case errors.Is(err, errs.ErrUnavailable):
		return CodeUnavailable

	case errors.Is(err, errs.ErrPipelineNotFound),
		errors.Is(err, errs.ErrNotFound):
		return CodeNotFound

	case errors.Is(err, errs.ErrInvalidParams),
		errors.Is(err, errs.ErrPipelineAlreadyExists):
		return CodeBadRequest

	case errors.Is(err, errs.ErrUnauthorized),
		errors.Is(err, errs.ErrMissingLicenseKey):
		return CodeUnauthorized

	case errors.Is(err, errs.ErrMessageNotDelivered),
		errors.Is(err, errs.ErrProcessMessage),
		errors.Is(err, errs.ErrIO),
		errors.Is(err, errs.ErrInternal),
		errors.Is(err, errs.ErrQuery),
		errors.Is(err, errs.ErrSerialization),
		errors.Is(err, errs.ErrDatabase),
		errors.Is(err, errs.ErrCollectionCreation),
		errors.Is(err, errs.ErrPartitionCreation),
		errors.Is(err, errs.ErrInsertion),
		errors.Is(err, errs.ErrInference),
		errors.Is(err, errs.ErrUnknown):
		return CodeInternal

	default:
		return CodeInternal
	}
}
