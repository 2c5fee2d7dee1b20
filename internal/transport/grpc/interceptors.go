package grpc

import (
	"context"
	"path"
	"strings"

	"github.com/FlooooowY/SteelMount-Challenge-Engine/internal/domain"
	"github.com/FlooooowY/SteelMount-Challenge-Engine/internal/identity"
	"github.com/FlooooowY/SteelMount-Challenge-Engine/internal/logger"
	"github.com/FlooooowY/SteelMount-Challenge-Engine/internal/security"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// publicMethods may be called without a session token
var publicMethods = map[string]bool{
	MethodQuote:              true,
	MethodListChallengeTypes: true,
}

// mutatingMethods are subject to per user rate limiting
var mutatingMethods = map[string]bool{
	MethodSubmitChallenge: true,
	MethodConfirmPayment:  true,
}

// AuthInterceptor verifies the bearer token in the authorization metadata and
// attaches the user to the context for identity.ContextProvider
type AuthInterceptor struct {
	verifier *identity.TokenVerifier
}

func NewAuthInterceptor(verifier *identity.TokenVerifier) *AuthInterceptor {
	return &AuthInterceptor{verifier: verifier}
}

func (a *AuthInterceptor) UnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		token := bearerToken(ctx)
		if token == "" {
			if publicMethods[info.FullMethod] {
				return handler(ctx, req)
			}
			return nil, toStatus(domain.ErrNotAuthenticated)
		}

		claims, err := a.verifier.Verify(token)
		if err != nil {
			logger.WithError(err).WithField(logger.FieldMethod, info.FullMethod).Debug("Rejected session token")
			return nil, toStatus(err)
		}

		return handler(identity.WithUserID(ctx, claims.UserID), req)
	}
}

// bearerToken extracts the token from "authorization: Bearer <token>"
func bearerToken(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	values := md.Get("authorization")
	if len(values) == 0 {
		return ""
	}
	value := values[0]
	if len(value) > 7 && strings.EqualFold(value[:7], "bearer ") {
		return strings.TrimSpace(value[7:])
	}
	return ""
}

// RateLimitRecorder is notified of rejected calls
type RateLimitRecorder interface {
	RecordRateLimitHit(method string)
}

// RateLimitInterceptor limits mutating calls per authenticated user. It must
// run after AuthInterceptor.
type RateLimitInterceptor struct {
	limiter  *security.RateLimiter
	recorder RateLimitRecorder
}

func NewRateLimitInterceptor(limiter *security.RateLimiter, recorder RateLimitRecorder) *RateLimitInterceptor {
	return &RateLimitInterceptor{limiter: limiter, recorder: recorder}
}

func (r *RateLimitInterceptor) UnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if !mutatingMethods[info.FullMethod] {
			return handler(ctx, req)
		}

		userID, ok := identity.ContextProvider{}.CurrentUserID(ctx)
		if !ok {
			return handler(ctx, req)
		}

		method := path.Base(info.FullMethod)
		if !r.limiter.Allow(ctx, security.UserKey(userID, method)) {
			if r.recorder != nil {
				r.recorder.RecordRateLimitHit(method)
			}
			logger.WithField(logger.FieldUserID, userID).WithField(logger.FieldMethod, method).Warn("Rate limit exceeded")
			return nil, status.Errorf(codes.ResourceExhausted, "rate limit exceeded for %s", method)
		}

		return handler(ctx, req)
	}
}
