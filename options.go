package statepath

import "github.com/goliatone/go-statepath/pkg/activity"

// Option configures an Engine.
type Option func(*engineConfig)

type engineConfig struct {
	evaluator          Evaluator
	programCache       ProgramCache
	functions          *FunctionRegistry
	logger             Logger
	loops              LoopContextProvider
	listIndexCacheSize int
	activityHooks      activity.Hooks
	activityChannel    string
	activityVerbs      []string
	rootChannels       bool
}

func applyOptions(opts []Option) engineConfig {
	cfg := engineConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.logger == nil {
		cfg.logger = noopLogger{}
	}
	if cfg.programCache == nil {
		cfg.programCache = NewLRUProgramCache(DefaultProgramCacheSize)
	}
	if cfg.loops == nil {
		cfg.loops = NewNodeLoopContexts()
	}
	return cfg
}

// WithEvaluator replaces the evaluator used by computed paths that do not
// name an engine.
func WithEvaluator(e Evaluator) Option {
	return func(cfg *engineConfig) {
		cfg.evaluator = e
	}
}

// WithLoopContexts sets the provider that maps nodes to loop contexts.
func WithLoopContexts(provider LoopContextProvider) Option {
	return func(cfg *engineConfig) {
		cfg.loops = provider
	}
}

// WithListIndexCacheSize bounds the memo of binding list index resolutions.
func WithListIndexCacheSize(size int) Option {
	return func(cfg *engineConfig) {
		cfg.listIndexCacheSize = size
	}
}

// WithActivityHooks attaches hooks notified about invalidations and writes.
// Nil hooks are dropped.
func WithActivityHooks(hooks activity.Hooks) Option {
	normalized := cloneActivityHooks(hooks)
	return func(cfg *engineConfig) {
		cfg.activityHooks = normalized
	}
}

// WithActivityChannel overrides the channel stamped on emitted events.
func WithActivityChannel(channel string) Option {
	return func(cfg *engineConfig) {
		cfg.activityChannel = channel
	}
}

// WithActivityVerbs limits emitted events to verbs, e.g. activity.VerbWrite.
func WithActivityVerbs(verbs ...string) Option {
	return func(cfg *engineConfig) {
		cfg.activityVerbs = append([]string(nil), verbs...)
	}
}

// WithActivityRootChannels stamps each event with a per-root channel such as
// "statepath.app".
func WithActivityRootChannels() Option {
	return func(cfg *engineConfig) {
		cfg.rootChannels = true
	}
}

func cloneActivityHooks(hooks activity.Hooks) activity.Hooks {
	if len(hooks) == 0 {
		return nil
	}
	normalized := make([]activity.ActivityHook, 0, len(hooks))
	for _, hook := range hooks {
		if hook == nil {
			continue
		}
		normalized = append(normalized, hook)
	}
	if len(normalized) == 0 {
		return nil
	}
	return activity.Hooks(normalized)
}
