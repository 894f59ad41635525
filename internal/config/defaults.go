package config

// Default configuration values.
const (
	DefaultModelsDir     = "models"
	DefaultSourcesDir    = "sources"
	DefaultSchema        = "main"
	DefaultStateFile     = ".leapcheck/state.db"
	DefaultOutput        = "auto" // TTY=text, otherwise markdown
	DefaultPlanner       = "static"
	DefaultIntrospectSch = "public"
	DefaultServeAddr     = "127.0.0.1:8787"
	DefaultWorkers       = 1
)

// Config file names, in lookup order.
const (
	ConfigFileName    = "leapcheck.yaml"
	ConfigFileNameAlt = "leapcheck.yml"
)

// EnvPrefix is the prefix of environment variables read into the config.
const EnvPrefix = "LEAPCHECK_"

func defaults() map[string]any {
	return map[string]any{
		"models_dir":          DefaultModelsDir,
		"sources_dir":         DefaultSourcesDir,
		"default_schema":      DefaultSchema,
		"state_path":          DefaultStateFile,
		"output":              DefaultOutput,
		"verbose":             false,
		"planner.kind":        DefaultPlanner,
		"introspect.schema":   DefaultIntrospectSch,
		"serve.addr":          DefaultServeAddr,
		"propagation.workers": DefaultWorkers,
	}
}

// Default returns the configuration used when nothing has been loaded.
func Default() *Config {
	return &Config{
		ModelsDir:     DefaultModelsDir,
		SourcesDir:    DefaultSourcesDir,
		DefaultSchema: DefaultSchema,
		StatePath:     DefaultStateFile,
		OutputFormat:  DefaultOutput,
		Planner:       PlannerConfig{Kind: DefaultPlanner},
		Introspect:    IntrospectConfig{Schema: DefaultIntrospectSch},
		Serve:         ServeConfig{Addr: DefaultServeAddr},
		Propagation:   PropagationConfig{Workers: DefaultWorkers},
	}
}
