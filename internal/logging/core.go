package logging

import (
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/log"
	"go.uber.org/zap/zapcore"
)

// newCore builds the stdout and/or OTEL cores and wraps them with sampling.
func newCore(cfg *Config, otelProvider log.LoggerProvider) (zapcore.Core, error) {
	return newCoreTo(cfg, otelProvider, os.Stdout)
}

func newCoreTo(cfg *Config, otelProvider log.LoggerProvider, out io.Writer) (zapcore.Core, error) {
	cores := make([]zapcore.Core, 0, 2)

	if cfg.Output.Stdout {
		encoder, err := NewRedactingEncoder(newEncoder(cfg.Format), cfg.Redaction)
		if err != nil {
			return nil, fmt.Errorf("failed to create redacting encoder: %w", err)
		}
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(out), cfg.Level))
	}

	if cfg.Output.OTEL && otelProvider != nil {
		name := cfg.Fields["service"]
		if name == "" {
			name = "finsight"
		}
		cores = append(cores, otelzap.NewCore(name, otelzap.WithLoggerProvider(otelProvider)))
	}

	if len(cores) == 0 {
		return nil, fmt.Errorf("at least one output must be enabled and available")
	}

	return newSampledCore(zapcore.NewTee(cores...), cfg.Sampling), nil
}

// newSampledCore applies each level's sampling policy independently so a
// burst of debug output cannot starve info entries.
func newSampledCore(core zapcore.Core, cfg SamplingConfig) zapcore.Core {
	if !cfg.Enabled || len(cfg.Levels) == 0 {
		return core
	}

	sampled := make(map[zapcore.Level]zapcore.Core, len(cfg.Levels))
	for level, lc := range cfg.Levels {
		if level >= zapcore.ErrorLevel {
			continue
		}
		sampled[level] = zapcore.NewSamplerWithOptions(core, cfg.Tick.Duration(), lc.Initial, lc.Thereafter)
	}

	return &levelSampledCore{Core: core, sampled: sampled}
}

// levelSampledCore routes entries to the sampler for their level, or to the
// unsampled core when the level has none.
type levelSampledCore struct {
	zapcore.Core
	sampled map[zapcore.Level]zapcore.Core
}

func (c *levelSampledCore) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if s, ok := c.sampled[e.Level]; ok {
		return s.Check(e, ce)
	}
	return c.Core.Check(e, ce)
}

func (c *levelSampledCore) With(fields []zapcore.Field) zapcore.Core {
	sampled := make(map[zapcore.Level]zapcore.Core, len(c.sampled))
	for level, s := range c.sampled {
		sampled[level] = s.With(fields)
	}
	return &levelSampledCore{Core: c.Core.With(fields), sampled: sampled}
}
