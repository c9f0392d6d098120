package offload

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"toolgate/internal/domain"
	"toolgate/internal/infra/telemetry"
)

const previewLength = 500

// Envelope is the structured reply substituted for an oversized result.
type Envelope struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// Offloader keeps oversized tool results out of the model's context
// window by externalizing them to a sandboxed directory and substituting
// a pointer-and-instructions message.
type Offloader struct {
	dir        string
	threshold  int
	truncateTo int
	logger     *zap.Logger
	metrics    domain.Metrics
	now        func() time.Time
}

type Options struct {
	Config  domain.OffloadConfig
	Logger  *zap.Logger
	Metrics domain.Metrics
	Now     func() time.Time
}

func New(opts Options) *Offloader {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	cfg := opts.Config
	if cfg.Threshold <= 0 {
		cfg.Threshold = domain.DefaultOffloadThreshold
	}
	if cfg.TruncateLength <= 0 {
		cfg.TruncateLength = domain.DefaultTruncateLength
	}
	return &Offloader{
		dir:        cfg.Dir,
		threshold:  cfg.Threshold,
		truncateTo: cfg.TruncateLength,
		logger:     logger.Named("offload"),
		metrics:    opts.Metrics,
		now:        now,
	}
}

// Process returns the result unchanged when it fits, otherwise offloads it
// and returns the envelope. It never fails the call: when the offload
// write fails it falls back to in-band truncation.
func (o *Offloader) Process(toolName, result string) string {
	if len(result) <= o.threshold {
		return result
	}

	structured, pretty := decodeStructured(result)
	payload := result
	format := "text"
	ext := "txt"
	if structured {
		payload = pretty
		format = "json"
		ext = "json"
	}

	path, err := o.write(toolName, payload, ext)
	if err != nil {
		o.logger.Warn("offload write failed, truncating in band",
			telemetry.EventField(telemetry.EventOffloadError),
			telemetry.ToolField(toolName),
			zap.Error(err))
		return o.truncate(result)
	}

	if o.metrics != nil {
		o.metrics.RecordOffload(format)
	}
	o.logger.Info("oversized tool result offloaded",
		telemetry.EventField(telemetry.EventOffloadWritten),
		telemetry.ToolField(toolName),
		zap.Int("size", len(result)),
		zap.String("path", path))

	envelope := Envelope{Type: "text", Content: o.alert(result, path, structured)}
	encoded, err := json.Marshal(envelope)
	if err != nil {
		return o.truncate(result)
	}
	return string(encoded)
}

func (o *Offloader) alert(result, path string, structured bool) string {
	if structured {
		return fmt.Sprintf(
			"Tool response too large (%d chars). The full JSON result was saved to %s. "+
				"Load the file and filter by the relevant field, matching case-insensitively, "+
				"instead of reading it whole.",
			len(result), path)
	}
	preview := result
	if len(preview) > previewLength {
		preview = preview[:previewLength]
	}
	return fmt.Sprintf(
		"Tool response too large (%d chars). The full text was saved to %s. "+
			"Preview:\n%s\n"+
			"Suggested parsing strategies: split the file into lines, or extract the "+
			"relevant portion with a pattern match.",
		len(result), path, preview)
}

func (o *Offloader) write(toolName, payload, ext string) (string, error) {
	if o.dir == "" {
		return "", fmt.Errorf("offload directory not configured")
	}
	if err := os.MkdirAll(o.dir, 0o755); err != nil {
		return "", fmt.Errorf("ensure offload dir: %w", err)
	}
	sum := sha256.Sum256([]byte(payload))
	name := fmt.Sprintf("%s_%s_%s.%s",
		sanitize(toolName),
		o.now().UTC().Format("20060102T150405"),
		hex.EncodeToString(sum[:4]),
		ext)
	path := filepath.Join(o.dir, name)
	if err := os.WriteFile(path, []byte(payload), 0o600); err != nil {
		return "", fmt.Errorf("write offload file: %w", err)
	}
	return path, nil
}

func (o *Offloader) truncate(result string) string {
	if len(result) <= o.truncateTo {
		return result
	}
	return result[:o.truncateTo] + "\n[truncated]"
}

// decodeStructured reports whether the payload is a JSON object or array,
// returning its indented re-encoding when it is.
func decodeStructured(result string) (bool, string) {
	var decoded any
	if err := json.Unmarshal([]byte(result), &decoded); err != nil {
		return false, ""
	}
	switch decoded.(type) {
	case map[string]any, []any:
	default:
		return false, ""
	}
	pretty, err := json.MarshalIndent(decoded, "", "  ")
	if err != nil {
		return false, ""
	}
	return true, string(pretty)
}

func sanitize(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	if len(out) == 0 {
		return "result"
	}
	return string(out)
}
