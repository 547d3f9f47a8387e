package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/Domenick1991/slotbot/api"
	adminapi "github.com/Domenick1991/slotbot/internal/api/admin_service_api"
	"github.com/gin-gonic/gin"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type Servers struct {
	grpcServer *grpc.Server
	httpServer *http.Server
	health     *health.Server
}

// Run starts the gRPC admin and HTTP servers and blocks until ctx is canceled
// or a server fails. With the embedded scheduler enabled it also drives the
// time-based transitions.
func Run(ctx context.Context, app *App) error {
	s := newServers(app)

	errCh := make(chan error, 3)

	lis, err := net.Listen("tcp", app.Config.GRPC.Address)
	if err != nil {
		return fmt.Errorf("listen gRPC %s: %w", app.Config.GRPC.Address, err)
	}
	go func() { errCh <- s.grpcServer.Serve(lis) }()

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	if app.Config.Scheduler.Embedded {
		go func() {
			if err := app.Scheduler().Run(ctx); err != nil {
				errCh <- err
			}
		}()
	}

	app.Logger.Info("servers started", "http", app.Config.HTTP.Address, "grpc", app.Config.GRPC.Address, "deps", app.String())

	select {
	case err := <-errCh:
		s.grpcServer.Stop()
		_ = s.httpServer.Close()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.health.Shutdown()
		s.grpcServer.GracefulStop()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	}
}

func newServers(app *App) *Servers {
	grpcSrv := grpc.NewServer()
	adminapi.RegisterBookingAdminServer(grpcSrv, adminapi.NewServer(app.Bookings, app.Schedule, app.Logger.With("component", "admin")))

	healthSrv := health.NewServer()
	healthSrv.SetServingStatus(adminapi.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcSrv, healthSrv)

	gin.SetMode(gin.ReleaseMode)
	httpSrv := &http.Server{
		Addr:              app.Config.HTTP.Address,
		Handler:           api.NewRouter(app.Handlers(), app.Logger.With("component", "http")),
		ReadHeaderTimeout: 5 * time.Second,
	}

	return &Servers{
		grpcServer: grpcSrv,
		httpServer: httpSrv,
		health:     healthSrv,
	}
}
