package grpcfeed

import (
	"sync"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/yitech/chartfeed/session"
	"github.com/yitech/chartfeed/widget"
)

// Server runs one session per Subscribe stream until the client goes away.
type Server struct {
	manager *session.Manager
	log     *zap.Logger
}

func NewServer(m *session.Manager, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{manager: m, log: log.Named("grpcfeed")}
}

func (s *Server) Subscribe(msg *structpb.Struct, stream grpc.ServerStream) error {
	var req Request
	if err := fromStruct(msg, &req); err != nil {
		return status.Error(codes.InvalidArgument, err.Error())
	}

	sink := &streamSink{stream: stream, errc: make(chan error, 1)}
	sess := s.manager.Open(sink)
	defer s.manager.Close(sess)

	log := s.log.With(zap.String("session", sess.ID()), zap.Strings("symbols", req.Symbols))
	log.Info("new subscription", zap.String("resolution", string(req.Resolution)))

	if req.Resolution != "" {
		sess.Driver().SetResolution(req.Resolution)
	}
	if err := sess.Start(req.Symbols); err != nil {
		return status.Error(codes.Internal, err.Error())
	}

	select {
	case <-stream.Context().Done():
		log.Info("client disconnected")
		return stream.Context().Err()
	case err := <-sink.errc:
		log.Warn("send failed", zap.Error(err))
		return err
	}
}

// streamSink serializes sends; a grpc stream allows one sender at a time.
type streamSink struct {
	stream grpc.ServerStream

	// errc receives the first failed send.
	errc chan error

	mu sync.Mutex
}

func (k *streamSink) Send(ev widget.Event) error {
	msg, err := EncodeEvent(ev)
	if err != nil {
		return err
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	if err := k.stream.SendMsg(msg); err != nil {
		select {
		case k.errc <- err:
		default:
		}
		return err
	}
	return nil
}
