package manager

import (
	"time"

	"github.com/rs/zerolog"

	"chatd/pkg/types"
)

// Defaults applied when corresponding ManagerConfig fields are unset.
const (
	defaultMaxQueueDepth = 32
	defaultMaxWait       = 30 * time.Second
	subscriberBuffer     = 16
)

// ManagerConfig encapsulates all tunables for Manager construction.
type ManagerConfig struct {
	Engine Engine
	Model  ModelSpec
	// MaxQueueDepth bounds requests waiting for (or holding) the engine, in-flight included.
	MaxQueueDepth int
	// MaxWait bounds the time a request waits for a queue slot and then for the engine.
	MaxWait time.Duration
	// GenerateTimeout bounds a single engine call; zero disables it.
	GenerateTimeout time.Duration
	Publisher       EventPublisher
	Logger          *zerolog.Logger
}

// NewWithConfig constructs a Manager from ManagerConfig.
func NewWithConfig(cfg ManagerConfig) *Manager {
	m := &Manager{
		engine: cfg.Engine,
		spec:   cfg.Model,
		progress: types.LoadingProgress{
			Status:   types.LoadInitializing,
			Progress: types.Percent(0),
			Message:  "Preparing to load model...",
		},
		subs:       make(map[int]chan types.LoadingProgress),
		genTimeout: cfg.GenerateTimeout,
		publisher:  cfg.Publisher,
		log:        zerolog.Nop(),
	}
	// Apply defaults if unset
	depth := cfg.MaxQueueDepth
	if depth <= 0 {
		depth = defaultMaxQueueDepth
	}
	if cfg.MaxWait <= 0 {
		m.maxWait = defaultMaxWait
	} else {
		m.maxWait = cfg.MaxWait
	}
	m.genCh = make(chan struct{}, 1)
	m.queueCh = make(chan struct{}, depth)
	if m.publisher == nil {
		m.publisher = noopPublisher{}
	}
	if cfg.Logger != nil {
		m.log = cfg.Logger.With().Str("component", "manager").Logger()
	}
	m.startTime = time.Now()
	modelState.Set(stateValue(types.LoadInitializing))
	return m
}
