package grpc

import (
	"context"
	"time"

	"github.com/FlooooowY/SteelMount-Challenge-Engine/internal/domain"
	"github.com/FlooooowY/SteelMount-Challenge-Engine/internal/escrow"
	"google.golang.org/grpc"
)

// ServiceName is the fully qualified gRPC service name
const ServiceName = "challenge.v1.ChallengeEngine"

// Full method names, used by interceptors and clients
const (
	MethodQuote                  = "/" + ServiceName + "/Quote"
	MethodListChallengeTypes     = "/" + ServiceName + "/ListChallengeTypes"
	MethodListOpponents          = "/" + ServiceName + "/ListOpponents"
	MethodSubmitChallenge        = "/" + ServiceName + "/SubmitChallenge"
	MethodGetPaymentInstructions = "/" + ServiceName + "/GetPaymentInstructions"
	MethodConfirmPayment         = "/" + ServiceName + "/ConfirmPayment"
	MethodGetPaymentState        = "/" + ServiceName + "/GetPaymentState"
)

type QuoteRequest struct {
	StakeSats    int64 `json:"stake_sats"`
	Participants int   `json:"participants"`
	FeePercent   int   `json:"fee_percent"`
}

type QuoteResponse struct {
	Breakdown escrow.Breakdown `json:"breakdown"`
	Summary   []string         `json:"summary"`
}

type ListChallengeTypesRequest struct{}

type ChallengeTypeInfo struct {
	Type            domain.ChallengeType `json:"type"`
	Title           string               `json:"title"`
	Description     string               `json:"description"`
	DefaultDuration time.Duration        `json:"default_duration"`
}

type ListChallengeTypesResponse struct {
	Types []ChallengeTypeInfo `json:"types"`
}

type ListOpponentsRequest struct {
	TeamID string `json:"team_id"`
}

type ListOpponentsResponse struct {
	Opponents []domain.TeamMemberWithProfile `json:"opponents"`
}

// SubmitChallengeRequest carries a finished draft. Zero values fall back to
// the draft defaults.
type SubmitChallengeRequest struct {
	Opponents      []string   `json:"opponents"`
	ChallengeType  string     `json:"challenge_type,omitempty"`
	StakeSats      int64      `json:"stake_sats"`
	TeamFeePercent int        `json:"team_fee_percent,omitempty"`
	StartDate      *time.Time `json:"start_date,omitempty"`
	EndDate        *time.Time `json:"end_date,omitempty"`
	Message        string     `json:"message,omitempty"`
	TeamID         string     `json:"team_id,omitempty"`
}

type SubmitChallengeResponse struct {
	ChallengeID string           `json:"challenge_id"`
	Escrow      escrow.Breakdown `json:"escrow"`
}

type GetPaymentInstructionsRequest struct {
	ChallengeID string `json:"challenge_id"`
}

type GetPaymentInstructionsResponse struct {
	Instructions domain.PaymentInstructions `json:"instructions"`
	URI          string                     `json:"uri"`
}

type ConfirmPaymentRequest struct {
	ChallengeID string `json:"challenge_id"`
	UserID      string `json:"user_id"`
}

type ConfirmPaymentResponse struct {
	Claim domain.PaymentClaim `json:"claim"`
}

type GetPaymentStateRequest struct {
	ChallengeID string `json:"challenge_id"`
}

type GetPaymentStateResponse struct {
	State domain.PaymentState `json:"state"`
}

// ChallengeEngineServer is the server API for the challenge engine
type ChallengeEngineServer interface {
	Quote(context.Context, *QuoteRequest) (*QuoteResponse, error)
	ListChallengeTypes(context.Context, *ListChallengeTypesRequest) (*ListChallengeTypesResponse, error)
	ListOpponents(context.Context, *ListOpponentsRequest) (*ListOpponentsResponse, error)
	SubmitChallenge(context.Context, *SubmitChallengeRequest) (*SubmitChallengeResponse, error)
	GetPaymentInstructions(context.Context, *GetPaymentInstructionsRequest) (*GetPaymentInstructionsResponse, error)
	ConfirmPayment(context.Context, *ConfirmPaymentRequest) (*ConfirmPaymentResponse, error)
	GetPaymentState(context.Context, *GetPaymentStateRequest) (*GetPaymentStateResponse, error)
}

func unaryHandler[Req, Resp any](fullMethod string, call func(ChallengeEngineServer, context.Context, *Req) (*Resp, error)) func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ChallengeEngineServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(ChallengeEngineServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// ChallengeEngineServiceDesc describes the service for grpc.Server.RegisterService
var ChallengeEngineServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ChallengeEngineServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Quote", Handler: unaryHandler(MethodQuote, ChallengeEngineServer.Quote)},
		{MethodName: "ListChallengeTypes", Handler: unaryHandler(MethodListChallengeTypes, ChallengeEngineServer.ListChallengeTypes)},
		{MethodName: "ListOpponents", Handler: unaryHandler(MethodListOpponents, ChallengeEngineServer.ListOpponents)},
		{MethodName: "SubmitChallenge", Handler: unaryHandler(MethodSubmitChallenge, ChallengeEngineServer.SubmitChallenge)},
		{MethodName: "GetPaymentInstructions", Handler: unaryHandler(MethodGetPaymentInstructions, ChallengeEngineServer.GetPaymentInstructions)},
		{MethodName: "ConfirmPayment", Handler: unaryHandler(MethodConfirmPayment, ChallengeEngineServer.ConfirmPayment)},
		{MethodName: "GetPaymentState", Handler: unaryHandler(MethodGetPaymentState, ChallengeEngineServer.GetPaymentState)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "challenge/v1/engine",
}

// RegisterChallengeEngineServer registers srv on s
func RegisterChallengeEngineServer(s grpc.ServiceRegistrar, srv ChallengeEngineServer) {
	s.RegisterService(&ChallengeEngineServiceDesc, srv)
}

// ChallengeEngineClient calls the engine over a client connection using the
// JSON codec
type ChallengeEngineClient struct {
	cc grpc.ClientConnInterface
}

func NewChallengeEngineClient(cc grpc.ClientConnInterface) *ChallengeEngineClient {
	return &ChallengeEngineClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in interface{}, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ChallengeEngineClient) Quote(ctx context.Context, in *QuoteRequest, opts ...grpc.CallOption) (*QuoteResponse, error) {
	return invoke[QuoteResponse](ctx, c.cc, MethodQuote, in, opts)
}

func (c *ChallengeEngineClient) ListChallengeTypes(ctx context.Context, in *ListChallengeTypesRequest, opts ...grpc.CallOption) (*ListChallengeTypesResponse, error) {
	return invoke[ListChallengeTypesResponse](ctx, c.cc, MethodListChallengeTypes, in, opts)
}

func (c *ChallengeEngineClient) ListOpponents(ctx context.Context, in *ListOpponentsRequest, opts ...grpc.CallOption) (*ListOpponentsResponse, error) {
	return invoke[ListOpponentsResponse](ctx, c.cc, MethodListOpponents, in, opts)
}

func (c *ChallengeEngineClient) SubmitChallenge(ctx context.Context, in *SubmitChallengeRequest, opts ...grpc.CallOption) (*SubmitChallengeResponse, error) {
	return invoke[SubmitChallengeResponse](ctx, c.cc, MethodSubmitChallenge, in, opts)
}

func (c *ChallengeEngineClient) GetPaymentInstructions(ctx context.Context, in *GetPaymentInstructionsRequest, opts ...grpc.CallOption) (*GetPaymentInstructionsResponse, error) {
	return invoke[GetPaymentInstructionsResponse](ctx, c.cc, MethodGetPaymentInstructions, in, opts)
}

func (c *ChallengeEngineClient) ConfirmPayment(ctx context.Context, in *ConfirmPaymentRequest, opts ...grpc.CallOption) (*ConfirmPaymentResponse, error) {
	return invoke[ConfirmPaymentResponse](ctx, c.cc, MethodConfirmPayment, in, opts)
}

func (c *ChallengeEngineClient) GetPaymentState(ctx context.Context, in *GetPaymentStateRequest, opts ...grpc.CallOption) (*GetPaymentStateResponse, error) {
	return invoke[GetPaymentStateResponse](ctx, c.cc, MethodGetPaymentState, in, opts)
}
