package translate

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// ErrDisabled reports that the gateway stopped calling the provider
// after a fatal error (or was built without one).
var ErrDisabled = errors.New("translation gateway disabled")

// Config tunes the gateway's fan-out, retry and cache behavior.
type Config struct {
	MaxConcurrent int
	MaxRetries    int
	BackoffBase   time.Duration
	CacheSize     int
	CacheTTL      time.Duration
}

// Gateway fans one text out to many target locales through a Provider,
// cache-first, with bounded retry. Results stream to the caller as each
// locale completes; the slowest locale never delays the others.
type Gateway struct {
	provider    Provider
	cache       *Cache
	sem         chan struct{}
	maxRetries  int
	backoffBase time.Duration
	disabled    atomic.Bool
	log         *zerolog.Logger
	sleep       func(time.Duration)
}

// NewGateway builds a gateway over the given provider. A nil provider
// yields a gateway that is permanently disabled (pass-through chat).
func NewGateway(provider Provider, cfg Config, logger *zerolog.Logger) *Gateway {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 5
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 1500 * time.Millisecond
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	g := &Gateway{
		provider:    provider,
		cache:       NewCache(cfg.CacheSize, cfg.CacheTTL),
		sem:         make(chan struct{}, cfg.MaxConcurrent),
		maxRetries:  cfg.MaxRetries,
		backoffBase: cfg.BackoffBase,
		log:         logger,
		sleep:       time.Sleep,
	}
	if provider == nil {
		g.disabled.Store(true)
	}
	return g
}

// Enabled reports whether the gateway will attempt provider calls.
func (g *Gateway) Enabled() bool {
	return !g.disabled.Load()
}

// TranslateMany translates text into every target language, invoking
// onEach from a worker goroutine the moment a locale resolves. The
// returned map covers the locales that succeeded; failed lists the ones
// whose retry budget ran out. The source language (after normalization)
// is skipped.
func (g *Gateway) TranslateMany(ctx context.Context, text, sourceLang string, targetLangs []string, onEach func(lang, translated string)) (map[string]string, []string) {
	results := make(map[string]string)
	var failed []string

	if !g.Enabled() || len(targetLangs) == 0 {
		return results, failed
	}

	sourceLocale := ToLocale(sourceLang, "")

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	seen := make(map[string]struct{}, len(targetLangs))
	for _, lang := range targetLangs {
		if _, dup := seen[lang]; dup {
			continue
		}
		seen[lang] = struct{}{}

		targetLocale := ToLocale(lang, "")
		if targetLocale == "" || targetLocale == sourceLocale {
			continue
		}

		wg.Add(1)
		go func(lang, targetLocale string) {
			defer wg.Done()

			g.sem <- struct{}{}
			defer func() { <-g.sem }()

			translated, err := g.translate(ctx, text, sourceLocale, targetLocale)
			if err != nil {
				g.log.Warn().Err(err).Str("target", lang).Msg("translation failed")
				mu.Lock()
				failed = append(failed, lang)
				mu.Unlock()
				return
			}

			mu.Lock()
			results[lang] = translated
			mu.Unlock()
			if onEach != nil {
				onEach(lang, translated)
			}
		}(lang, targetLocale)
	}
	wg.Wait()

	sort.Strings(failed)
	return results, failed
}

// TranslateOne translates a single text, cache-first with retry. Used to
// fill gaps in room history on join.
func (g *Gateway) TranslateOne(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	if !g.Enabled() {
		return text, nil
	}

	sourceLocale := ToLocale(sourceLang, "")
	targetLocale := ToLocale(targetLang, "")
	if targetLocale == "" || targetLocale == sourceLocale {
		return text, nil
	}

	g.sem <- struct{}{}
	defer func() { <-g.sem }()

	return g.translate(ctx, text, sourceLocale, targetLocale)
}

// translate runs the cache check and the bounded retry loop for one locale.
func (g *Gateway) translate(ctx context.Context, text, sourceLocale, targetLocale string) (string, error) {
	if cached, ok := g.cache.Get(text, sourceLocale, targetLocale); ok {
		return cached, nil
	}

	var lastErr error
	for attempt := 0; attempt < g.maxRetries; attempt++ {
		if attempt > 0 {
			g.sleep(g.backoffBase << (attempt - 1))
		}
		if !g.Enabled() {
			break
		}

		translated, err := g.provider.Localize(ctx, text, sourceLocale, targetLocale)
		if err == nil {
			g.cache.Put(text, sourceLocale, targetLocale, translated)
			return translated, nil
		}

		lastErr = err
		if IsFatal(err) {
			// Bad credentials will not heal; stop calling the provider
			// for the remainder of the process lifetime.
			g.disabled.Store(true)
			g.log.Error().Err(err).Msg("translation disabled after fatal provider error")
			break
		}
		if !IsTransient(err) {
			break
		}
		g.log.Warn().Err(err).
			Str("target", targetLocale).
			Int("attempt", attempt+1).
			Msg("translation attempt failed")
	}
	if lastErr == nil {
		// The loop can exit without an attempt when a concurrent fatal
		// error disabled the gateway. Report it instead of returning an
		// empty translation as success.
		lastErr = ErrDisabled
	}
	return "", lastErr
}
