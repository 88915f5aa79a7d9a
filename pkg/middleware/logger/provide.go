package logger

import (
	"github.com/joeydtaylor/agegate/pkg/gate"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// ProvideLogger returns the component logger written to system.log.
func ProvideLogger() *zap.Logger { return NewLog("system.log") }

type accessParams struct {
	fx.In
	Gates  *gate.Manager
	Access *zap.Logger `name:"access" optional:"true"`
}

func ProvideLoggerMiddleware(p accessParams) *Middleware {
	if p.Access == nil {
		p.Access = NewLog("http-access.log")
	}
	return New(p.Access, p.Gates)
}
