// Package grpcfeed streams chart events over gRPC. The service is declared
// by hand and carries google.protobuf.Struct messages, so no generated
// code is needed:
//
//	service ChartFeed {
//	  rpc Subscribe(google.protobuf.Struct) returns (stream google.protobuf.Struct);
//	}
package grpcfeed

import (
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/yitech/chartfeed/model/bar"
	"github.com/yitech/chartfeed/widget"
)

const (
	ServiceName     = "chartfeed.ChartFeed"
	subscribeMethod = "/" + ServiceName + "/Subscribe"
)

// Request opens one chart: Symbols seeds the selection and Resolution,
// when set, the chart's starting resolution.
type Request struct {
	Symbols    []string       `json:"symbols"`
	Resolution bar.Resolution `json:"resolution,omitempty"`
}

// FeedServer is the server-side API of the service.
type FeedServer interface {
	Subscribe(req *structpb.Struct, stream grpc.ServerStream) error
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*FeedServer)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Subscribe",
			Handler:       subscribeHandler,
			ServerStreams: true,
		},
	},
	Metadata: "chartfeed.proto",
}

func subscribeHandler(srv any, stream grpc.ServerStream) error {
	req := new(structpb.Struct)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	return srv.(FeedServer).Subscribe(req, stream)
}

// Register adds srv to s under ServiceDesc.
func Register(s grpc.ServiceRegistrar, srv FeedServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// ── conversion ───────────────────────────────────────────────────────────────

func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("grpcfeed: encode: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("grpcfeed: encode: %w", err)
	}
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, fmt.Errorf("grpcfeed: encode: %w", err)
	}
	return s, nil
}

func fromStruct(s *structpb.Struct, v any) error {
	raw, err := json.Marshal(s.AsMap())
	if err != nil {
		return fmt.Errorf("grpcfeed: decode: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("grpcfeed: decode: %w", err)
	}
	return nil
}

// EncodeEvent converts ev to its wire message.
func EncodeEvent(ev widget.Event) (*structpb.Struct, error) { return toStruct(ev) }

// DecodeEvent converts a wire message back to an event.
func DecodeEvent(s *structpb.Struct) (widget.Event, error) {
	var ev widget.Event
	err := fromStruct(s, &ev)
	return ev, err
}
