package grpc

import (
	"context"
	"errors"

	"github.com/FlooooowY/SteelMount-Challenge-Engine/internal/domain"
	"github.com/FlooooowY/SteelMount-Challenge-Engine/internal/identity"
	"github.com/FlooooowY/SteelMount-Challenge-Engine/internal/repository"
	"github.com/FlooooowY/SteelMount-Challenge-Engine/internal/roster"
	"github.com/FlooooowY/SteelMount-Challenge-Engine/internal/usecase"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// toStatus maps engine errors onto gRPC status codes. Validation failures
// carry a BadRequest detail naming the offending field.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	var validation *domain.ValidationError
	switch {
	case errors.As(err, &validation):
		st := status.New(codes.InvalidArgument, validation.Error())
		detailed, detailErr := st.WithDetails(&errdetails.BadRequest{
			FieldViolations: []*errdetails.BadRequest_FieldViolation{
				{Field: validation.Field, Description: validation.Message},
			},
		})
		if detailErr != nil {
			return st.Err()
		}
		return detailed.Err()
	case errors.Is(err, domain.ErrNotAuthenticated), errors.Is(err, identity.ErrInvalidToken):
		return status.Error(codes.Unauthenticated, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		return status.Error(codes.PermissionDenied, err.Error())
	case errors.Is(err, repository.ErrChallengeNotFound), errors.Is(err, roster.ErrTeamNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, domain.ErrChallengeCreation), errors.Is(err, domain.ErrPaymentConfirmation):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, usecase.ErrAlreadySubmitted), errors.Is(err, usecase.ErrSubmissionInProgress), errors.Is(err, domain.ErrNoStake):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
