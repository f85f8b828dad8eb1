package rpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client is a typed client for the daemon's chat service.
type Client struct {
	conn *grpc.ClientConn
}

// Dial connects to the daemon listening on socketPath. The connection is
// established lazily on the first call.
func Dial(socketPath string) (*Client, error) {
	conn, err := grpc.NewClient(
		"unix://"+socketPath,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("dial daemon: %w", err)
	}
	return &Client{conn: conn}, nil
}

// Close closes the gRPC connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func invoke[Resp any](ctx context.Context, c *Client, method string, in any) (*Resp, error) {
	req, err := toStruct(in)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, fullMethod(method), req, out); err != nil {
		return nil, err
	}
	resp := new(Resp)
	if err := fromStruct(out, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) GetStatus(ctx context.Context) (*Status, error) {
	return invoke[Status](ctx, c, MethodGetStatus, Empty{})
}

func (c *Client) Login(ctx context.Context, username, password string) (*Status, error) {
	return invoke[Status](ctx, c, MethodLogin, LoginRequest{Username: username, Password: password})
}

func (c *Client) Logout(ctx context.Context) error {
	_, err := invoke[Empty](ctx, c, MethodLogout, Empty{})
	return err
}

func (c *Client) ListContacts(ctx context.Context, query string, reload bool) (*ContactsResponse, error) {
	return invoke[ContactsResponse](ctx, c, MethodListContacts, ContactsRequest{Query: query, Reload: reload})
}

func (c *Client) SelectConversation(ctx context.Context, receiverID int64, receiverName string) (*View, error) {
	return invoke[View](ctx, c, MethodSelectConversation, SelectRequest{ReceiverID: receiverID, ReceiverName: receiverName})
}

func (c *Client) LoadOlder(ctx context.Context) (*OlderResponse, error) {
	return invoke[OlderResponse](ctx, c, MethodLoadOlder, Empty{})
}

func (c *Client) GetView(ctx context.Context) (*View, error) {
	return invoke[View](ctx, c, MethodGetView, Empty{})
}

func (c *Client) SendMessage(ctx context.Context, text string) (*View, error) {
	return invoke[View](ctx, c, MethodSendMessage, SendRequest{Text: text})
}

func (c *Client) CloseConversation(ctx context.Context) error {
	_, err := invoke[Empty](ctx, c, MethodCloseConversation, Empty{})
	return err
}

// EventStream receives envelopes from WatchEvents.
type EventStream struct {
	stream grpc.ClientStream
}

// Recv blocks for the next event.
func (s *EventStream) Recv() (*Envelope, error) {
	out := new(structpb.Struct)
	if err := s.stream.RecvMsg(out); err != nil {
		return nil, err
	}
	env := new(Envelope)
	if err := fromStruct(out, env); err != nil {
		return nil, err
	}
	return env, nil
}

// WatchEvents streams bus events in the given namespaces until ctx is done.
func (c *Client) WatchEvents(ctx context.Context, namespaces ...string) (*EventStream, error) {
	stream, err := c.conn.NewStream(ctx, &ChatServiceDesc.Streams[0], fullMethod(MethodWatchEvents))
	if err != nil {
		return nil, err
	}
	req, err := toStruct(WatchRequest{Namespaces: namespaces})
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(req); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return &EventStream{stream: stream}, nil
}
