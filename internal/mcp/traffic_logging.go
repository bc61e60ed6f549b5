package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/rpggio/vestledger/internal/address"
)

func trafficLoggingMiddleware(logger *zap.Logger, direction string) sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			if logger == nil || !logger.Core().Enabled(zapcore.DebugLevel) {
				return next(ctx, method, req)
			}

			fields := []zap.Field{
				zap.String("direction", direction),
				zap.String("method", method),
				zap.String("session_id", safeSessionID(req)),
				zap.String("identity", address.Key(getIdentity(ctx))),
			}
			logger.Debug("mcp traffic", append(fields, zap.String("stage", "request"), zap.String("params", formatPayload(safeParams(req))))...)

			result, err := next(ctx, method, req)
			if !strings.HasPrefix(method, "notifications/") {
				fields = append(fields, zap.String("stage", "response"), zap.String("result", formatPayload(result)))
				if err != nil {
					fields = append(fields, zap.Error(err))
				}
				logger.Debug("mcp traffic", fields...)
			}

			return result, err
		}
	}
}

func safeSessionID(req sdkmcp.Request) string {
	if req == nil {
		return ""
	}
	defer func() { recover() }()
	session := req.GetSession()
	if session == nil {
		return ""
	}
	return session.ID()
}

func safeParams(req sdkmcp.Request) any {
	if req == nil {
		return nil
	}
	defer func() { recover() }()
	return req.GetParams()
}

func formatPayload(payload any) string {
	if payload == nil {
		return "<nil>"
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Sprintf("%T", payload)
	}
	return string(data)
}
