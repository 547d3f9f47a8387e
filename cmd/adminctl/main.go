// Command adminctl calls the booking admin service.
//
//	adminctl [-addr host:port] cancel -id 12 -admin 7 [-reason text]
//	adminctl get -id 12
//	adminctl events -id 12
//	adminctl schedule [-date 2025-06-01 ...]
//	adminctl history [-user 42] [-limit 20]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	adminapi "github.com/Domenick1991/slotbot/internal/api/admin_service_api"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

type dateList []string

func (d *dateList) String() string { return strings.Join(*d, ",") }

func (d *dateList) Set(v string) error {
	*d = append(*d, v)
	return nil
}

func main() {
	addr := flag.String("addr", envOr("SLOTBOT_GRPC_ADDRESS", "localhost:9090"), "admin gRPC address")
	timeout := flag.Duration("timeout", 5*time.Second, "call timeout")
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: adminctl [-addr host:port] cancel|get|events|schedule|history [flags]")
		os.Exit(2)
	}

	conn, err := grpc.NewClient(*addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(adminapi.CallOptions()...),
	)
	if err != nil {
		log.Fatalf("dial %s: %v", *addr, err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	reply, err := run(ctx, adminapi.NewClient(conn), flag.Arg(0), flag.Args()[1:])
	if err != nil {
		log.Fatalf("%s: %v", flag.Arg(0), err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(reply); err != nil {
		log.Fatalf("encode reply: %v", err)
	}
}

func run(ctx context.Context, client *adminapi.Client, command string, args []string) (any, error) {
	fs := flag.NewFlagSet(command, flag.ExitOnError)
	id := fs.Int64("id", 0, "booking id")
	admin := fs.Int64("admin", 0, "admin user id")
	reason := fs.String("reason", "", "cancellation reason")
	user := fs.Int64("user", 0, "requester id, 0 lists all requesters")
	limit := fs.Int("limit", 20, "history size")
	var dates dateList
	fs.Var(&dates, "date", "schedule date, repeatable")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	switch command {
	case "cancel":
		return client.CancelBooking(ctx, &adminapi.CancelRequest{BookingID: *id, AdminID: *admin, Reason: *reason})
	case "get":
		return client.GetBooking(ctx, &adminapi.BookingRequest{BookingID: *id})
	case "events":
		return client.ListEvents(ctx, &adminapi.BookingRequest{BookingID: *id})
	case "schedule":
		return client.ListSchedule(ctx, &adminapi.ScheduleRequest{Dates: dates})
	case "history":
		return client.History(ctx, &adminapi.HistoryRequest{RequesterID: *user, Limit: int32(*limit)})
	default:
		return nil, fmt.Errorf("unknown command %q", command)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
