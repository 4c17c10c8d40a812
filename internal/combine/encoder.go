package combine

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// Encoder concatenates media files into one output file.
type Encoder interface {
	// Check reports whether the encoder can run at all.
	Check() error
	// Concat joins inputs in order into output, re-encoding as needed.
	Concat(ctx context.Context, inputs []string, output string) error
}

// FFmpeg shells out to the ffmpeg binary. Inputs with mismatched codecs,
// resolutions, or framerates are handled by re-encoding through a concat
// filter graph rather than stream copy.
type FFmpeg struct {
	path   string
	logger *zap.Logger
}

// NewFFmpeg builds an FFmpeg encoder. An empty path means "ffmpeg" from
// PATH.
func NewFFmpeg(path string, logger *zap.Logger) *FFmpeg {
	if path == "" {
		path = "ffmpeg"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FFmpeg{path: path, logger: logger}
}

// Check verifies the binary is resolvable.
func (f *FFmpeg) Check() error {
	if _, err := exec.LookPath(f.path); err != nil {
		return fmt.Errorf("ffmpeg not found at %q: %w", f.path, err)
	}
	return nil
}

// Concat runs one ffmpeg invocation joining inputs into output.
func (f *FFmpeg) Concat(ctx context.Context, inputs []string, output string) error {
	args := concatArgs(inputs, output)
	f.logger.Debug("running encoder", zap.String("bin", f.path), zap.Strings("args", args))

	cmd := exec.CommandContext(ctx, f.path, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg concat failed: %w: %s", err, tail(string(out), 512))
	}
	return nil
}

// concatArgs builds the ffmpeg argument list. Paths are made absolute and
// slash-normalized so the filter graph parses identically on every
// platform.
func concatArgs(inputs []string, output string) []string {
	args := []string{"-y", "-hide_banner", "-loglevel", "error"}
	for _, in := range inputs {
		args = append(args, "-i", normalizePath(in))
	}

	var filter strings.Builder
	for i := range inputs {
		fmt.Fprintf(&filter, "[%d:v][%d:a]", i, i)
	}
	fmt.Fprintf(&filter, "concat=n=%d:v=1:a=1[v][a]", len(inputs))

	args = append(args,
		"-filter_complex", filter.String(),
		"-map", "[v]",
		"-map", "[a]",
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-c:a", "aac",
		"-movflags", "+faststart",
		normalizePath(output),
	)
	return args
}

func normalizePath(p string) string {
	abs, err := filepath.Abs(p)
	if err != nil {
		abs = p
	}
	return filepath.ToSlash(abs)
}

func tail(s string, n int) string {
	if len(s) <= n {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(s[len(s)-n:])
}
