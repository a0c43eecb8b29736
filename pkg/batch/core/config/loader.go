package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/tigerroll/wrfcycle/pkg/batch/support/util/exception"
	"github.com/tigerroll/wrfcycle/pkg/batch/support/util/logger"
)

const moduleName = "config"

// envPrefix prefixes every environment override (e.g. WRFCYCLE_RECOVERY_MAX_RESTARTS).
const envPrefix = "WRFCYCLE_"

// LoadOptions selects the configuration sources.
type LoadOptions struct {
	// EnvFilePath is the .env file to load; empty tries ./.env silently.
	EnvFilePath string
	// Embedded is the default YAML compiled into the binary.
	Embedded EmbeddedConfig
	// FilePath is an optional experiment YAML file layered over Embedded.
	FilePath string
}

// Load builds the configuration: defaults, embedded YAML, experiment YAML, then environment overrides.
// `${VAR}` placeholders in both YAML sources are expanded before decoding.
// Any failure is a ConfigError.
func Load(opts LoadOptions) (*Config, error) {
	if opts.EnvFilePath != "" {
		if err := godotenv.Load(opts.EnvFilePath); err != nil {
			logger.Warnf(".env file (%s) not found or could not be loaded: %v", opts.EnvFilePath, err)
		}
	} else if err := godotenv.Load(); err != nil {
		logger.Debugf(".env file not found or could not be loaded: %v", err)
	}

	cfg := NewConfig()
	expander := NewOsEnvironmentExpander()

	sources := []struct {
		name string
		data []byte
	}{{name: "embedded config", data: opts.Embedded}}
	if opts.FilePath != "" {
		data, err := os.ReadFile(opts.FilePath)
		if err != nil {
			return nil, exception.ConfigErrorf(moduleName, "failed to read config file '%s'", opts.FilePath, err)
		}
		sources = append(sources, struct {
			name string
			data []byte
		}{name: opts.FilePath, data: data})
	}

	for _, src := range sources {
		if len(src.data) == 0 {
			continue
		}
		expanded, err := expander.Expand(src.data)
		if err != nil {
			return nil, exception.ConfigErrorf(moduleName, "failed to expand %s", src.name, err)
		}
		// yaml.v3 leaves fields absent from the document untouched, so each source layers over the previous one.
		if err := yaml.Unmarshal(expanded, cfg); err != nil {
			return nil, exception.ConfigErrorf(moduleName, "failed to unmarshal %s", src.name, err)
		}
	}

	if err := loadStructFromEnv(reflect.ValueOf(cfg).Elem(), ""); err != nil {
		return nil, exception.ConfigErrorf(moduleName, "failed to load config from environment variables", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadStructFromEnv recursively overrides struct fields from environment variables named after the
// upper-cased yaml tag path, e.g. WRFCYCLE_SCHEDULER_POLL_INTERVAL_SECONDS.
// Slices are read as comma-separated lists.
func loadStructFromEnv(val reflect.Value, prefix string) error {
	typ := val.Type()
	for i := 0; i < typ.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)
		yamlTag := strings.Split(fieldType.Tag.Get("yaml"), ",")[0]
		if yamlTag == "" || yamlTag == "-" {
			continue
		}
		envVarName := strings.ToUpper(prefix + yamlTag)

		if field.Kind() == reflect.Struct {
			if err := loadStructFromEnv(field, envVarName+"_"); err != nil {
				return err
			}
			continue
		}

		envValue, exists := os.LookupEnv(envVarName)
		if !exists {
			continue
		}
		if err := setField(field, envValue); err != nil {
			return fmt.Errorf("failed to set field '%s' from env var '%s': %w", fieldType.Name, envVarName, err)
		}
	}
	return nil
}

// setField sets a scalar (or []string) field from its string representation.
func setField(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		intValue, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(intValue)
	case reflect.Float64, reflect.Float32:
		floatValue, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(floatValue)
	case reflect.Bool:
		boolValue, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(boolValue)
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return nil
		}
		parts := strings.Split(value, ",")
		out := reflect.MakeSlice(field.Type(), 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = reflect.Append(out, reflect.ValueOf(p))
			}
		}
		field.Set(out)
	}
	return nil
}
