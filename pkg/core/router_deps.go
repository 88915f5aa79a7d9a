package core

import (
	"net/http"
	"time"

	"github.com/joeydtaylor/agegate/pkg/gate"
	"github.com/joeydtaylor/agegate/pkg/middleware/logger"
	httpx "github.com/joeydtaylor/agegate/pkg/transport/httpx"
)

type BuildDeps struct {
	Service *Service
	Gates   *gate.Manager
	LogMW   *logger.Middleware
	Metrics http.Handler
	Router  httpx.Router
	// Timeout bounds each verification request; zero means 10s.
	Timeout time.Duration
}
