package secrets

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Options names explicit files that take precedence over the search paths.
type Options struct {
	EnvFile    string
	ConfigFile string
}

// Resolver builds Secrets from files and environment variables.
type Resolver struct {
	env        Environment
	logger     *zap.Logger
	searchDirs []string
	clock      func() time.Time

	mu sync.Mutex
	// derivedRegion is the value the last pass wrote into AWS_DEFAULT_REGION
	// when that variable was unset, i.e. a copy of AWS_REGION or the default.
	derivedRegion string
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithEnvironment replaces the process environment, primarily for tests.
func WithEnvironment(env Environment) ResolverOption {
	return func(r *Resolver) {
		r.env = env
	}
}

// WithLogger sets the logger used for load and warning messages.
func WithLogger(logger *zap.Logger) ResolverOption {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// WithSearchDirs overrides the fallback directories that follow the current
// directory in the lookup order.
func WithSearchDirs(dirs ...string) ResolverOption {
	return func(r *Resolver) {
		r.searchDirs = dirs
	}
}

// WithClock overrides the time source, primarily for tests.
func WithClock(clock func() time.Time) ResolverOption {
	return func(r *Resolver) {
		r.clock = clock
	}
}

// NewResolver returns a Resolver that reads the process environment and the
// default search directories unless overridden.
func NewResolver(opts ...ResolverOption) *Resolver {
	r := &Resolver{
		env:        OSEnvironment{},
		searchDirs: DefaultSearchDirs(),
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	return r
}

// Environment returns the variable table the resolver writes into.
func (r *Resolver) Environment() Environment {
	return r.env
}

// CandidatePaths returns the env-file and credential-file lookup orders.
func (r *Resolver) CandidatePaths(opts Options) (envPaths, configPaths []string) {
	return candidatePaths(opts.EnvFile, EnvFileName, r.searchDirs),
		candidatePaths(opts.ConfigFile, FirebaseConfigFileName, r.searchDirs)
}

// Resolve loads the first existing env file and credential file, assembles
// the configuration from the resulting environment and normalizes
// AWS_DEFAULT_REGION. Problems with individual sources are logged and
// recorded as warnings; resolution itself never fails.
func (r *Resolver) Resolve(opts Options) *Secrets {
	r.mu.Lock()
	defer r.mu.Unlock()

	rep := &report{logger: r.logger}
	var sources Sources
	var fileKeys map[string]struct{}

	envPaths, configPaths := r.CandidatePaths(opts)

	if path, ok := firstExisting(envPaths); ok {
		keys, err := loadEnvFile(r.env, path)
		if err != nil {
			rep.warnf("could not load env file %s: %v", path, err)
		} else {
			fileKeys = keys
			sources.EnvFile = path
			r.logger.Info("loaded configuration", zap.String("path", path), zap.Int("variables", len(keys)))
		}
	}
	r.forgetDerivedRegion(fileKeys, rep)

	if path, ok := firstExisting(configPaths); ok {
		if err := loadFirebaseConfig(r.env, path); err != nil {
			rep.warnf("could not load Firebase config %s: %v", path, err)
		} else {
			sources.ConfigFile = path
			r.logger.Info("loaded Firebase config", zap.String("path", path))
		}
	}

	s := assemble(r.env, rep)
	s.sources = sources
	s.warnings = rep.warnings
	s.loadedAt = r.clock()

	region := s.AWS().Region
	derived := getenv(r.env, EnvAWSDefaultRegion) == ""
	if err := r.env.Setenv(EnvAWSDefaultRegion, region); err != nil {
		rep.warnf("could not export %s: %v", EnvAWSDefaultRegion, err)
		s.warnings = rep.warnings
	} else if derived {
		r.derivedRegion = region
	}

	r.logger.Info("configuration resolved",
		zap.String("aws_region", region),
		zap.Bool("firebase_configured", s.Contains(KeyFirebase)),
		zap.Bool("anthropic_configured", s.Contains(KeyAnthropicAPIKey)),
		zap.Strings("sections", s.Keys()),
	)
	return s
}

// forgetDerivedRegion clears AWS_DEFAULT_REGION when it still holds the copy
// a previous pass wrote, so AWS_REGION and the default are consulted again.
// A value assigned by this pass's env file is kept.
func (r *Resolver) forgetDerivedRegion(fileKeys map[string]struct{}, rep *report) {
	if r.derivedRegion == "" {
		return
	}
	derived := r.derivedRegion
	r.derivedRegion = ""
	if _, ok := fileKeys[EnvAWSDefaultRegion]; ok {
		return
	}
	if getenv(r.env, EnvAWSDefaultRegion) != derived {
		return
	}
	if err := r.env.Setenv(EnvAWSDefaultRegion, ""); err != nil {
		rep.warnf("could not reset %s: %v", EnvAWSDefaultRegion, err)
	}
}

func assemble(env Environment, rep *report) *Secrets {
	s := newSecrets()

	if key := getenv(env, EnvAnthropicAPIKey); key != "" {
		s.set(KeyAnthropicAPIKey, key)
	}

	if fb := buildFirebase(env, rep); len(fb) > 0 {
		s.set(KeyFirebase, fb)
	}

	if admin := buildFromVars(env, adminFields); len(admin) > 0 {
		s.set(KeyAdmin, admin)
	}

	s.set(KeyAWS, buildAWS(env))
	s.set(KeyApp, buildApp(env, rep))
	return s
}

func buildAWS(env Environment) Section {
	region := getenv(env, EnvAWSDefaultRegion)
	if region == "" {
		region = getenvDefault(env, EnvAWSRegion, DefaultAWSRegion)
	}
	sec := Section{"region": region}
	if id := getenv(env, EnvAWSAccessKeyID); id != "" {
		sec["access_key_id"] = id
		sec["secret_access_key"] = getenv(env, EnvAWSSecretAccessKey)
	}
	return sec
}

func buildApp(env Environment, rep *report) Section {
	port := DefaultAppPort
	if raw := strings.TrimSpace(getenv(env, EnvAppPort)); raw != "" {
		p, err := strconv.Atoi(raw)
		if err != nil {
			rep.warnf("invalid %s %q, using %d", EnvAppPort, raw, DefaultAppPort)
		} else {
			port = p
		}
	}
	return Section{
		"mode":  getenvDefault(env, EnvAppMode, DefaultAppMode),
		"port":  port,
		"host":  getenvDefault(env, EnvAppHost, DefaultAppHost),
		"debug": strings.EqualFold(getenv(env, EnvAppDebug), "true"),
	}
}

// report collects non-fatal problems and logs each as a warning.
type report struct {
	logger   *zap.Logger
	warnings []string
}

func (r *report) warnf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	r.warnings = append(r.warnings, msg)
	r.logger.Warn(msg)
}
