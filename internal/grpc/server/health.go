// Package server реализует gRPC-сервер сервиса пресейла.
//
// Сервер отдаёт стандартный протокол grpc.health.v1: общий статус процесса
// и статус сервиса presale, который зависит от режима работы с бэкендом.
package server

import (
	"context"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/magabrotheeeer/presale-service/internal/config"
)

// ServiceName имя сервиса пресейла в протоколе health.
const ServiceName = "presale"

// Server gRPC-сервер со службой health.
type Server struct {
	grpc   *grpc.Server
	health *health.Server
	log    *slog.Logger
}

// New создаёт сервер и выставляет статусы по режиму бэкенда.
func New(log *slog.Logger, backendMode string) *Server {
	s := &Server{
		health: health.NewServer(),
		log:    log,
	}
	s.grpc = grpc.NewServer(grpc.UnaryInterceptor(s.logRequests))
	healthpb.RegisterHealthServer(s.grpc, s.health)
	s.SetBackendMode(backendMode)
	return s
}

// SetBackendMode обновляет статус сервиса presale: SERVING при живом бэкенде,
// NOT_SERVING в офлайн-режиме. Общий статус процесса всегда SERVING.
func (s *Server) SetBackendMode(mode string) {
	st := healthpb.HealthCheckResponse_SERVING
	if mode == config.BackendOffline {
		st = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(ServiceName, st)
}

// Serve принимает соединения до остановки.
func (s *Server) Serve(lis net.Listener) error {
	return s.grpc.Serve(lis)
}

// GracefulStop переводит статусы в NOT_SERVING и дожидается завершения запросов.
func (s *Server) GracefulStop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}

func (s *Server) logRequests(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	s.log.Debug("grpc request",
		slog.String("method", info.FullMethod),
		slog.String("code", status.Code(err).String()),
		slog.Duration("duration", time.Since(start)),
	)
	return resp, err
}
