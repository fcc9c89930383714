package grpc

import (
	"context"

	"github.com/vibast-solutions/ms-go-donations/app/types"
	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

const ServiceName = "donations.DonationsService"

func init() {
	encoding.RegisterCodec(types.JSONCodec{})
}

type DonationsServiceServer interface {
	Health(context.Context, *types.HealthRequest) (*types.HealthResponse, error)
	GetDonation(context.Context, *types.DonationIDRequest) (*types.DonationEnvelopeResponse, error)
	ListDonations(context.Context, *types.ListDonationsRequest) (*types.ListDonationsResponse, error)
	VerifyDonation(context.Context, *types.VerifyDonationRequest) (*types.VerifyDonationResponse, error)
	ResendCertificate(context.Context, *types.DonationIDRequest) (*types.ResendCertificateResponse, error)
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*DonationsServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Health", Handler: unaryHandler("Health", DonationsServiceServer.Health)},
		{MethodName: "GetDonation", Handler: unaryHandler("GetDonation", DonationsServiceServer.GetDonation)},
		{MethodName: "ListDonations", Handler: unaryHandler("ListDonations", DonationsServiceServer.ListDonations)},
		{MethodName: "VerifyDonation", Handler: unaryHandler("VerifyDonation", DonationsServiceServer.VerifyDonation)},
		{MethodName: "ResendCertificate", Handler: unaryHandler("ResendCertificate", DonationsServiceServer.ResendCertificate)},
	},
	Streams: []grpc.StreamDesc{},
}

func RegisterDonationsServiceServer(registrar grpc.ServiceRegistrar, srv DonationsServiceServer) {
	registrar.RegisterService(&ServiceDesc, srv)
}

func unaryHandler[Req any, Resp any](
	method string,
	call func(DonationsServiceServer, context.Context, *Req) (*Resp, error),
) grpc.MethodHandler {
	fullMethod := "/" + ServiceName + "/" + method
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		server := srv.(DonationsServiceServer)
		if interceptor == nil {
			return call(server, ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		return interceptor(ctx, in, info, func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(server, ctx, req.(*Req))
		})
	}
}

// Client calls the donations service with the JSON content-subtype.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) Health(ctx context.Context, in *types.HealthRequest, opts ...grpc.CallOption) (*types.HealthResponse, error) {
	out := new(types.HealthResponse)
	if err := c.invoke(ctx, "Health", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetDonation(ctx context.Context, in *types.DonationIDRequest, opts ...grpc.CallOption) (*types.DonationEnvelopeResponse, error) {
	out := new(types.DonationEnvelopeResponse)
	if err := c.invoke(ctx, "GetDonation", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListDonations(ctx context.Context, in *types.ListDonationsRequest, opts ...grpc.CallOption) (*types.ListDonationsResponse, error) {
	out := new(types.ListDonationsResponse)
	if err := c.invoke(ctx, "ListDonations", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) VerifyDonation(ctx context.Context, in *types.VerifyDonationRequest, opts ...grpc.CallOption) (*types.VerifyDonationResponse, error) {
	out := new(types.VerifyDonationResponse)
	if err := c.invoke(ctx, "VerifyDonation", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ResendCertificate(ctx context.Context, in *types.DonationIDRequest, opts ...grpc.CallOption) (*types.ResendCertificateResponse, error) {
	out := new(types.ResendCertificateResponse)
	if err := c.invoke(ctx, "ResendCertificate", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) invoke(ctx context.Context, method string, in, out interface{}, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(types.CodecName)}, opts...)
	return c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...)
}
