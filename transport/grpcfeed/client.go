package grpcfeed

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/yitech/chartfeed/widget"
)

// Stream is the client side of one Subscribe call.
type Stream struct {
	cs grpc.ClientStream
}

// Subscribe opens a chart on the server and returns its event stream.
// Cancel ctx to end it.
func Subscribe(ctx context.Context, conn grpc.ClientConnInterface, req Request) (*Stream, error) {
	msg, err := toStruct(req)
	if err != nil {
		return nil, err
	}
	cs, err := conn.NewStream(ctx, &ServiceDesc.Streams[0], subscribeMethod)
	if err != nil {
		return nil, fmt.Errorf("grpcfeed: open stream: %w", err)
	}
	if err := cs.SendMsg(msg); err != nil {
		return nil, fmt.Errorf("grpcfeed: send request: %w", err)
	}
	if err := cs.CloseSend(); err != nil {
		return nil, fmt.Errorf("grpcfeed: close send: %w", err)
	}
	return &Stream{cs: cs}, nil
}

// Recv blocks for the next event. It returns io.EOF when the server ends
// the stream.
func (s *Stream) Recv() (widget.Event, error) {
	msg := new(structpb.Struct)
	if err := s.cs.RecvMsg(msg); err != nil {
		return widget.Event{}, err
	}
	return DecodeEvent(msg)
}
