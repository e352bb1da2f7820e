package otlp

import (
	"context"
	"encoding/hex"
	"fmt"
	"net"
	"time"

	"github.com/logsift/logsift/internal/collector/model"
	"github.com/logsift/logsift/internal/collector/queue"
	protoLogs "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	v1 "go.opentelemetry.io/proto/otlp/logs/v1"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	_ "google.golang.org/grpc/encoding/gzip"
)

// LogServiceServerImpl receives OTLP log export requests and converts each
// record into a raw collector event.
type LogServiceServerImpl struct {
	protoLogs.UnimplementedLogsServiceServer
	queue  *queue.Queue
	logger *zap.Logger
}

func NewLogServiceServerImpl(eventQueue *queue.Queue, logger *zap.Logger) *LogServiceServerImpl {
	logger.Info("Creating new LogServiceServerImpl")
	return &LogServiceServerImpl{
		queue:  eventQueue,
		logger: logger,
	}
}

func (lss *LogServiceServerImpl) Export(
	ctx context.Context,
	req *protoLogs.ExportLogsServiceRequest,
) (*protoLogs.ExportLogsServiceResponse, error) {
	for _, resourceLogs := range req.ResourceLogs {
		for _, scopeLog := range resourceLogs.ScopeLogs {
			serviceName := ""
			if scopeLog.Scope != nil {
				serviceName = scopeLog.Scope.Name
			}
			for _, record := range scopeLog.LogRecords {
				event := typeRecord(record, serviceName)
				if err := lss.queue.Enqueue(ctx, event); err != nil {
					lss.logger.Warn("Failed to enqueue OTLP log record", zap.Error(err))
				}
			}
		}
	}
	return &protoLogs.ExportLogsServiceResponse{}, nil
}

func typeRecord(record *v1.LogRecord, serviceName string) model.RawEvent {
	timestamp := time.Now().UTC()
	if record.TimeUnixNano > 0 {
		timestamp = time.Unix(0, int64(record.TimeUnixNano)).UTC()
	}
	fields := map[string]interface{}{
		"message":   record.Body.GetStringValue(),
		"level":     string(getSeverity(record.SeverityNumber)),
		"log_type":  "otlp",
		"timestamp": timestamp.Format(time.RFC3339Nano),
	}
	if len(record.TraceId) > 0 {
		fields["trace_id"] = hex.EncodeToString(record.TraceId)
	}
	if len(record.SpanId) > 0 {
		fields["span_id"] = hex.EncodeToString(record.SpanId)
	}
	for _, attribute := range record.Attributes {
		if _, taken := fields[attribute.Key]; !taken {
			fields[attribute.Key] = attribute.Value.GetStringValue()
		}
	}
	return model.RawEvent{
		Source:     serviceName,
		Fields:     fields,
		ReceivedAt: timestamp,
	}
}

func getSeverity(severityNumber v1.SeverityNumber) logLevel {
	switch {
	case severityNumber >= v1.SeverityNumber_SEVERITY_NUMBER_ERROR:
		return errorLevel
	case severityNumber >= v1.SeverityNumber_SEVERITY_NUMBER_WARN:
		return warnLevel
	case severityNumber >= v1.SeverityNumber_SEVERITY_NUMBER_INFO:
		return infoLevel
	case severityNumber >= v1.SeverityNumber_SEVERITY_NUMBER_TRACE:
		return debugLevel
	default:
		return infoLevel
	}
}

type logLevel string

const (
	debugLevel logLevel = "DEBUG"
	infoLevel  logLevel = "INFO"
	warnLevel  logLevel = "WARN"
	errorLevel logLevel = "ERROR"
)

// Server wraps the gRPC listener hosting the OTLP log service.
type Server struct {
	grpcServer *grpc.Server
	addr       string
	logger     *zap.Logger
}

func NewServer(addr string, eventQueue *queue.Queue, logger *zap.Logger) *Server {
	grpcServer := grpc.NewServer()
	protoLogs.RegisterLogsServiceServer(grpcServer, NewLogServiceServerImpl(eventQueue, logger))
	return &Server{
		grpcServer: grpcServer,
		addr:       addr,
		logger:     logger,
	}
}

func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.logger.Info("gRPC service started, listening for OpenTelemetry logs", zap.String("addr", s.addr))
	go func() {
		if err := s.grpcServer.Serve(listener); err != nil {
			s.logger.Error("OTLP gRPC server stopped", zap.Error(err))
		}
	}()
	return nil
}

func (s *Server) Stop() {
	s.grpcServer.GracefulStop()
}
