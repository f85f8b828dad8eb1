// Package rpc exposes the conversation core to local clients over gRPC on
// the profile's Unix socket. Messages travel as google.protobuf.Struct and
// are mapped to the Go types in this package through their JSON form.
package rpc

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "koichat.v1.ChatService"

// Method names.
const (
	MethodGetStatus          = "GetStatus"
	MethodLogin              = "Login"
	MethodLogout             = "Logout"
	MethodListContacts       = "ListContacts"
	MethodSelectConversation = "SelectConversation"
	MethodLoadOlder          = "LoadOlder"
	MethodGetView            = "GetView"
	MethodSendMessage        = "SendMessage"
	MethodCloseConversation  = "CloseConversation"
	MethodWatchEvents        = "WatchEvents"
)

// ChatServer is the server API for the chat service.
type ChatServer interface {
	GetStatus(context.Context, *Empty) (*Status, error)
	Login(context.Context, *LoginRequest) (*Status, error)
	Logout(context.Context, *Empty) (*Empty, error)
	ListContacts(context.Context, *ContactsRequest) (*ContactsResponse, error)
	SelectConversation(context.Context, *SelectRequest) (*View, error)
	LoadOlder(context.Context, *Empty) (*OlderResponse, error)
	GetView(context.Context, *Empty) (*View, error)
	SendMessage(context.Context, *SendRequest) (*View, error)
	CloseConversation(context.Context, *Empty) (*Empty, error)
	WatchEvents(*WatchRequest, EventSender) error
}

// EventSender is the server side of a WatchEvents stream.
type EventSender interface {
	Send(*Envelope) error
	Context() context.Context
}

// ChatServiceDesc describes the chat service for grpc.Server.RegisterService.
var ChatServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ChatServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(MethodGetStatus, ChatServer.GetStatus),
		unary(MethodLogin, ChatServer.Login),
		unary(MethodLogout, ChatServer.Logout),
		unary(MethodListContacts, ChatServer.ListContacts),
		unary(MethodSelectConversation, ChatServer.SelectConversation),
		unary(MethodLoadOlder, ChatServer.LoadOlder),
		unary(MethodGetView, ChatServer.GetView),
		unary(MethodSendMessage, ChatServer.SendMessage),
		unary(MethodCloseConversation, ChatServer.CloseConversation),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    MethodWatchEvents,
			Handler:       watchEventsHandler,
			ServerStreams: true,
		},
	},
	Metadata: "koichat/v1/chat.proto",
}

// RegisterChatServer registers srv on s.
func RegisterChatServer(s grpc.ServiceRegistrar, srv ChatServer) {
	s.RegisterService(&ChatServiceDesc, srv)
}

func fullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

func unary[Req, Resp any](name string, call func(ChatServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			req := new(Req)
			if err := fromStruct(in, req); err != nil {
				return nil, err
			}
			handler := func(ctx context.Context, r any) (any, error) {
				resp, err := call(srv.(ChatServer), ctx, r.(*Req))
				if err != nil {
					return nil, err
				}
				return toStruct(resp)
			}
			if interceptor == nil {
				return handler(ctx, req)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
			return interceptor(ctx, req, info, handler)
		},
	}
}

func watchEventsHandler(srv any, stream grpc.ServerStream) error {
	in := new(structpb.Struct)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	req := new(WatchRequest)
	if err := fromStruct(in, req); err != nil {
		return err
	}
	return srv.(ChatServer).WatchEvents(req, &eventSender{stream})
}

type eventSender struct {
	grpc.ServerStream
}

func (s *eventSender) Send(e *Envelope) error {
	msg, err := toStruct(e)
	if err != nil {
		return err
	}
	return s.SendMsg(msg)
}

// toStruct converts v to a Struct through its JSON encoding.
func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	s := new(structpb.Struct)
	if err := protojson.Unmarshal(raw, s); err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	return s, nil
}

// fromStruct decodes s into v through its JSON encoding.
func fromStruct(s *structpb.Struct, v any) error {
	raw, err := protojson.Marshal(s)
	if err != nil {
		return fmt.Errorf("decode %T: %w", v, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode %T: %w", v, err)
	}
	return nil
}
