package app

import (
	"context"
	"sync"

	"github.com/molbhav/molbhav/internal/eventfeed"
	"github.com/molbhav/molbhav/internal/hotstore"
	"github.com/molbhav/molbhav/internal/negotiation"
	"github.com/molbhav/molbhav/internal/reaper"
	"github.com/molbhav/molbhav/internal/storage"
	"github.com/molbhav/molbhav/pkg/cache"
	"github.com/molbhav/molbhav/pkg/config"
	"github.com/molbhav/molbhav/pkg/healthprobe"
	"github.com/molbhav/molbhav/pkg/httpserver"
	"go.uber.org/zap"
)

// App is the main application orchestrator.
type App struct {
	cfg           *config.Config
	logger        *zap.Logger
	healthChecker *healthprobe.HealthChecker
	httpServer    *httpserver.Server
	negotiations  *negotiation.Service
	reaper        *reaper.Reaper
	feed          *eventfeed.Hub
	hot           hotstore.Store
	durable       storage.Storage
	catalogCache  cache.Cache
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
}
