// Package config loads env-tagged configuration structs.
//
// Every package that needs configuration declares a Config struct with
// caarlos0/env tags and a NewFromConfig constructor; cmd/authgate loads each
// one through Load:
//
//	var cfg gateway.Config
//	config.MustLoad(&cfg)
//
// A .env file in the working directory is applied once before the first parse.
// Values already present in the process environment win over the file.
package config

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	ErrParsingConfig = errors.New("failed to parse environment variables into config")
	ErrNilPointer    = errors.New("nil pointer provided to config loader")
)

var (
	dotenvOnce sync.Once

	cacheMu sync.RWMutex
	cache   = make(map[reflect.Type]any)
)

// Load parses environment variables into v. Each config type is parsed once;
// later calls receive the cached copy.
func Load[T any](v *T) error {
	if v == nil {
		return ErrNilPointer
	}

	typ := reflect.TypeOf(v).Elem()

	cacheMu.RLock()
	cached, ok := cache[typ]
	cacheMu.RUnlock()
	if ok {
		*v = cached.(T)
		return nil
	}

	if err := Parse(v); err != nil {
		return err
	}

	cacheMu.Lock()
	cache[typ] = *v
	cacheMu.Unlock()
	return nil
}

// Parse reads the environment into v without touching the cache.
func Parse[T any](v *T) error {
	if v == nil {
		return ErrNilPointer
	}

	dotenvOnce.Do(func() {
		// The .env file is optional.
		_ = godotenv.Load()
	})

	if err := env.Parse(v); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}
	return nil
}

// MustLoad works like Load but panics on failure. Used during startup only.
func MustLoad[T any](v *T) {
	if err := Load(v); err != nil {
		panic(fmt.Sprintf("failed to load required configuration: %v", err))
	}
}
