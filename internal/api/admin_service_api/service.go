package admin_service_api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/timestamppb"
)

const ServiceName = "slotbot.admin.v1.BookingAdmin"

type CancelRequest struct {
	BookingID int64  `json:"booking_id"`
	AdminID   int64  `json:"admin_id"`
	Reason    string `json:"reason,omitempty"`
}

type BookingRequest struct {
	BookingID int64 `json:"booking_id"`
}

type ScheduleRequest struct {
	// Dates defaults to today and tomorrow when empty.
	Dates []string `json:"dates,omitempty"`
}

type HistoryRequest struct {
	// RequesterID of zero lists bookings of all requesters.
	RequesterID int64 `json:"requester_id,omitempty"`
	Limit       int32 `json:"limit,omitempty"`
}

type Booking struct {
	ID            int64                  `json:"id"`
	RequesterID   int64                  `json:"requester_id"`
	RequesterName string                 `json:"requester_name,omitempty"`
	Date          string                 `json:"date"`
	Start         string                 `json:"start"`
	End           string                 `json:"end"`
	Status        string                 `json:"status"`
	CreatedAt     *timestamppb.Timestamp `json:"created_at,omitempty"`
	ConfirmedAt   *timestamppb.Timestamp `json:"confirmed_at,omitempty"`
	CancelledAt   *timestamppb.Timestamp `json:"cancelled_at,omitempty"`
	CompletedAt   *timestamppb.Timestamp `json:"completed_at,omitempty"`
	CancelledBy   string                 `json:"cancelled_by,omitempty"`
	CancelReason  string                 `json:"cancel_reason,omitempty"`
	ReminderSent  bool                   `json:"reminder_sent"`
	GroupNotified bool                   `json:"group_notified"`
}

type Event struct {
	ID        int64                  `json:"id"`
	Kind      string                 `json:"kind"`
	ActorRole string                 `json:"actor_role"`
	ActorID   *int64                 `json:"actor_id,omitempty"`
	Note      string                 `json:"note,omitempty"`
	At        *timestamppb.Timestamp `json:"at"`
}

type Day struct {
	Date     string    `json:"date"`
	Bookings []Booking `json:"bookings"`
}

type EventsReply struct {
	Events []Event `json:"events"`
}

type ScheduleReply struct {
	Days []Day `json:"days"`
}

type BookingsReply struct {
	Bookings []Booking `json:"bookings"`
}

// BookingAdminServer is the server API for the admin service.
type BookingAdminServer interface {
	CancelBooking(context.Context, *CancelRequest) (*Booking, error)
	GetBooking(context.Context, *BookingRequest) (*Booking, error)
	ListEvents(context.Context, *BookingRequest) (*EventsReply, error)
	ListSchedule(context.Context, *ScheduleRequest) (*ScheduleReply, error)
	History(context.Context, *HistoryRequest) (*BookingsReply, error)
}

func RegisterBookingAdminServer(s grpc.ServiceRegistrar, srv BookingAdminServer) {
	s.RegisterService(&BookingAdmin_ServiceDesc, srv)
}

func unaryHandler[Req any, Resp any](method string, call func(BookingAdminServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(BookingAdminServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(BookingAdminServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var BookingAdmin_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*BookingAdminServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CancelBooking", Handler: unaryHandler("CancelBooking", BookingAdminServer.CancelBooking)},
		{MethodName: "GetBooking", Handler: unaryHandler("GetBooking", BookingAdminServer.GetBooking)},
		{MethodName: "ListEvents", Handler: unaryHandler("ListEvents", BookingAdminServer.ListEvents)},
		{MethodName: "ListSchedule", Handler: unaryHandler("ListSchedule", BookingAdminServer.ListSchedule)},
		{MethodName: "History", Handler: unaryHandler("History", BookingAdminServer.History)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "slotbot/admin/v1/admin.proto",
}

// Client calls the admin service over an existing connection.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// CallOptions selects the JSON codec. Pass them to grpc.WithDefaultCallOptions
// when dialing or per call.
func CallOptions() []grpc.CallOption {
	return []grpc.CallOption{grpc.CallContentSubtype(CodecName)}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append(CallOptions(), opts...)
	if err := cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CancelBooking(ctx context.Context, in *CancelRequest, opts ...grpc.CallOption) (*Booking, error) {
	return invoke[Booking](ctx, c.cc, "CancelBooking", in, opts)
}

func (c *Client) GetBooking(ctx context.Context, in *BookingRequest, opts ...grpc.CallOption) (*Booking, error) {
	return invoke[Booking](ctx, c.cc, "GetBooking", in, opts)
}

func (c *Client) ListEvents(ctx context.Context, in *BookingRequest, opts ...grpc.CallOption) (*EventsReply, error) {
	return invoke[EventsReply](ctx, c.cc, "ListEvents", in, opts)
}

func (c *Client) ListSchedule(ctx context.Context, in *ScheduleRequest, opts ...grpc.CallOption) (*ScheduleReply, error) {
	return invoke[ScheduleReply](ctx, c.cc, "ListSchedule", in, opts)
}

func (c *Client) History(ctx context.Context, in *HistoryRequest, opts ...grpc.CallOption) (*BookingsReply, error) {
	return invoke[BookingsReply](ctx, c.cc, "History", in, opts)
}
