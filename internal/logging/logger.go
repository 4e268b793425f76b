package logging

import (
	"io"
	"log/slog"
	"strings"

	"security-content/internal/config"
)

// New builds a logger from the logging config. Output goes to w in JSON or text
// form; sensitive attributes are masked by ReplaceSensitive.
func New(cfg config.LoggingConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:       ParseLevel(cfg.Level),
		ReplaceAttr: ReplaceSensitive,
	}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// ParseLevel converts a level name to a slog.Level. Unknown names mean info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// ReplaceSensitive is a slog ReplaceAttr hook. Values of sensitive keys are
// replaced with MaskedValue and error messages are scrubbed of embedded credentials.
func ReplaceSensitive(_ []string, a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindGroup {
		return a
	}
	if IsSensitiveField(a.Key) {
		return slog.String(a.Key, MaskedValue)
	}
	if a.Key == "error" {
		return slog.String(a.Key, MaskSensitivePatterns(a.Value.String()))
	}
	return a
}

// ConfigSummary returns the attributes logged at startup. Credentials are never
// logged in full: the S3 key id keeps its first and last four characters, and
// passwords and secrets only show whether they are set.
func ConfigSummary(cfg *config.Config) []any {
	attrs := []any{
		"content_dir", cfg.Content.Dir,
		"strict", cfg.Build.Strict,
		"workers", cfg.Build.Workers,
		"attack_source", cfg.Attack.Source,
	}
	if cfg.Attack.Source == config.AttackSourceRedis {
		attrs = append(attrs,
			"redis_addr", MaskSensitivePatterns(cfg.Attack.Redis.Addr),
			"redis_auth", MaskSensitiveValue("password", cfg.Attack.Redis.Password),
		)
	}
	if s3 := cfg.Export.S3; s3.Enabled {
		attrs = append(attrs,
			"s3_bucket", s3.Bucket,
			"s3_key_id", MaskString(s3.AccessKeyID, 4, 4),
			"s3_key", MaskSensitiveValue("secret_access_key", s3.SecretAccessKey),
		)
	}
	return attrs
}
